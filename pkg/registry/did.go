package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// DidRepository is the C3 store for the Did entity.
type DidRepository struct {
	client *Client
}

// NewDidRepository constructs a DidRepository.
func NewDidRepository(client *Client) *DidRepository {
	return &DidRepository{client: client}
}

const didColumns = `id, did, upper_block, last_processed_block, last_block_saved`

func scanDid(row interface{ Scan(...interface{}) error }) (*Did, error) {
	var d Did
	if err := row.Scan(&d.ID, &d.DID, &d.UpperBlock, &d.LastProcessedBlock, &d.LastBlockSaved); err != nil {
		return nil, err
	}
	return &d, nil
}

// FindByDid looks up a Did by its unique string form.
func (r *DidRepository) FindByDid(ctx context.Context, didStr string) (*Did, error) {
	row := r.client.DB().QueryRowContext(ctx,
		`SELECT `+didColumns+` FROM did WHERE did = $1`, didStr,
	)
	d, err := scanDid(row)
	if err == sql.ErrNoRows {
		return nil, ErrDidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: find did: %w", err)
	}
	return d, nil
}

// Insert creates a new Did row. New Did rows start with zero cursors.
func (r *DidRepository) Insert(ctx context.Context, didStr string) (*Did, error) {
	d := &Did{ID: uuid.New(), DID: didStr}
	_, err := r.client.DB().ExecContext(ctx,
		`INSERT INTO did (`+didColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.DID, d.UpperBlock, d.LastProcessedBlock, d.LastBlockSaved,
	)
	if err != nil {
		return nil, fmt.Errorf("registry: insert did: %w", err)
	}
	return d, nil
}

// Update persists new reverse-walk cursors for an existing Did.
func (r *DidRepository) Update(ctx context.Context, id uuid.UUID, upperBlock, lastProcessedBlock, lastBlockSaved uint64) error {
	res, err := r.client.DB().ExecContext(ctx,
		`UPDATE did SET upper_block = $1, last_processed_block = $2, last_block_saved = $3, updated_at = now() WHERE id = $4`,
		upperBlock, lastProcessedBlock, lastBlockSaved, id,
	)
	if err != nil {
		return fmt.Errorf("registry: update did: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("registry: update did rows affected: %w", err)
	}
	if n == 0 {
		return ErrDidNotFound
	}
	return nil
}

// FindAll returns every Did transitively linked to the given Public Directory
// (via PdDidMember -> PdMember -> public_directory).
func (r *DidRepository) FindAll(ctx context.Context, contractAddress, chainID string) ([]*Did, error) {
	rows, err := r.client.DB().QueryContext(ctx,
		`SELECT DISTINCT d.id, d.did, d.upper_block, d.last_processed_block, d.last_block_saved
		 FROM did d
		 JOIN pd_did_member pdm ON pdm.did_id = d.id
		 JOIN pd_member pm ON pm.id = pdm.pd_member_id
		 JOIN public_directory pd ON pd.id = pm.public_directory_id
		 WHERE pd.contract_address = $1 AND pd.chain_id = $2`,
		contractAddress, chainID,
	)
	if err != nil {
		return nil, fmt.Errorf("registry: find all dids: %w", err)
	}
	defer rows.Close()

	var out []*Did
	for rows.Next() {
		d, err := scanDid(rows)
		if err != nil {
			return nil, fmt.Errorf("registry: scan did: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
