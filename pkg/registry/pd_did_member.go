package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PdDidMemberRepository is the C3 store for the PdDidMember association entity.
type PdDidMemberRepository struct {
	client *Client
}

// NewPdDidMemberRepository constructs a PdDidMemberRepository.
func NewPdDidMemberRepository(client *Client) *PdDidMemberRepository {
	return &PdDidMemberRepository{client: client}
}

const pdDidMemberColumns = `id, did_id, pd_member_id, block_number`

func scanPdDidMember(row interface{ Scan(...interface{}) error }) (*PdDidMember, error) {
	var m PdDidMember
	if err := row.Scan(&m.ID, &m.DidID, &m.PdMemberID, &m.BlockNumber); err != nil {
		return nil, err
	}
	return &m, nil
}

// Find looks up a PdDidMember by its unique (did_id, pd_member_id) key.
func (r *PdDidMemberRepository) Find(ctx context.Context, didID, pdMemberID uuid.UUID) (*PdDidMember, error) {
	row := r.client.DB().QueryRowContext(ctx,
		`SELECT `+pdDidMemberColumns+` FROM pd_did_member WHERE did_id = $1 AND pd_member_id = $2`,
		didID, pdMemberID,
	)
	m, err := scanPdDidMember(row)
	if err == sql.ErrNoRows {
		return nil, ErrPdDidMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: find pd did member: %w", err)
	}
	return m, nil
}

// Insert creates a new PdDidMember association row.
func (r *PdDidMemberRepository) Insert(ctx context.Context, didID, pdMemberID uuid.UUID, blockNumber uint64) (*PdDidMember, error) {
	m := &PdDidMember{ID: uuid.New(), DidID: didID, PdMemberID: pdMemberID, BlockNumber: blockNumber}
	_, err := r.client.DB().ExecContext(ctx,
		`INSERT INTO pd_did_member (`+pdDidMemberColumns+`) VALUES ($1, $2, $3, $4)`,
		m.ID, m.DidID, m.PdMemberID, m.BlockNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("registry: insert pd did member: %w", err)
	}
	return m, nil
}

// Update overwrites block_number for an existing PdDidMember row. Callers
// are responsible for the newer-wins comparison before calling this.
func (r *PdDidMemberRepository) Update(ctx context.Context, id uuid.UUID, blockNumber uint64) error {
	res, err := r.client.DB().ExecContext(ctx,
		`UPDATE pd_did_member SET block_number = $1, updated_at = now() WHERE id = $2`,
		blockNumber, id,
	)
	if err != nil {
		return fmt.Errorf("registry: update pd did member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("registry: update pd did member rows affected: %w", err)
	}
	if n == 0 {
		return ErrPdDidMemberNotFound
	}
	return nil
}
