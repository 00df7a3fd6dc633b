package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PdMemberRepository is the C3 store for the PdMember entity.
type PdMemberRepository struct {
	client *Client
}

// NewPdMemberRepository constructs a PdMemberRepository.
func NewPdMemberRepository(client *Client) *PdMemberRepository {
	return &PdMemberRepository{client: client}
}

const pdMemberColumns = `id, member_id, exp, public_directory_id, block_number, country_code, url`

func scanPdMember(row interface{ Scan(...interface{}) error }) (*PdMember, error) {
	var m PdMember
	var url sql.NullString
	if err := row.Scan(&m.ID, &m.MemberID, &m.Exp, &m.PublicDirectoryID, &m.BlockNumber, &m.CountryCode, &url); err != nil {
		return nil, err
	}
	m.URL = url.String
	m.URLValid = url.Valid
	return &m, nil
}

// FindByMember looks up a PdMember by its unique (public_directory_id, member_id) key.
func (r *PdMemberRepository) FindByMember(ctx context.Context, publicDirectoryID uuid.UUID, memberID int64) (*PdMember, error) {
	row := r.client.DB().QueryRowContext(ctx,
		`SELECT `+pdMemberColumns+` FROM pd_member WHERE public_directory_id = $1 AND member_id = $2`,
		publicDirectoryID, memberID,
	)
	m, err := scanPdMember(row)
	if err == sql.ErrNoRows {
		return nil, ErrPdMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: find pd member: %w", err)
	}
	return m, nil
}

// Insert creates a new PdMember row.
func (r *PdMemberRepository) Insert(ctx context.Context, memberID, exp int64, publicDirectoryID uuid.UUID, blockNumber uint64, countryCode, url string) (*PdMember, error) {
	m := &PdMember{
		ID:                uuid.New(),
		MemberID:          memberID,
		Exp:               exp,
		PublicDirectoryID: publicDirectoryID,
		BlockNumber:       blockNumber,
		CountryCode:       countryCode,
		URL:               url,
		URLValid:          url != "",
	}
	_, err := r.client.DB().ExecContext(ctx,
		`INSERT INTO pd_member (`+pdMemberColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.MemberID, m.Exp, m.PublicDirectoryID, m.BlockNumber, m.CountryCode, sql.NullString{String: url, Valid: m.URLValid},
	)
	if err != nil {
		return nil, fmt.Errorf("registry: insert pd member: %w", err)
	}
	return m, nil
}

// Update overwrites exp and block_number for an existing PdMember row.
// Callers are responsible for the newer-wins comparison before calling this.
func (r *PdMemberRepository) Update(ctx context.Context, id uuid.UUID, exp int64, blockNumber uint64) error {
	res, err := r.client.DB().ExecContext(ctx,
		`UPDATE pd_member SET exp = $1, block_number = $2, updated_at = now() WHERE id = $3`,
		exp, blockNumber, id,
	)
	if err != nil {
		return fmt.Errorf("registry: update pd member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("registry: update pd member rows affected: %w", err)
	}
	if n == 0 {
		return ErrPdMemberNotFound
	}
	return nil
}

// FindByDid returns the PdMember associated with a DID via PdDidMember.
func (r *PdMemberRepository) FindByDid(ctx context.Context, didID uuid.UUID) (*PdMember, error) {
	row := r.client.DB().QueryRowContext(ctx,
		`SELECT pm.id, pm.member_id, pm.exp, pm.public_directory_id, pm.block_number, pm.country_code, pm.url
		 FROM pd_member pm
		 JOIN pd_did_member pdm ON pdm.pd_member_id = pm.id
		 WHERE pdm.did_id = $1`,
		didID,
	)
	m, err := scanPdMember(row)
	if err == sql.ErrNoRows {
		return nil, ErrPdMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: find pd member by did: %w", err)
	}
	return m, nil
}
