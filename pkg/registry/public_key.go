package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PublicKeyRepository is the C3 store for the PublicKey entity.
type PublicKeyRepository struct {
	client *Client
}

// NewPublicKeyRepository constructs a PublicKeyRepository.
func NewPublicKeyRepository(client *Client) *PublicKeyRepository {
	return &PublicKeyRepository{client: client}
}

const publicKeyColumns = `id, country_code, content_hash, jwk, exp, is_compromised, did_id, block_number, url`

func scanPublicKey(row interface{ Scan(...interface{}) error }) (*PublicKey, error) {
	var k PublicKey
	var exp sql.NullInt64
	var isCompromised sql.NullBool
	var didID uuid.NullUUID
	var blockNumber sql.NullInt64
	var url sql.NullString

	if err := row.Scan(&k.ID, &k.CountryCode, &k.ContentHash, &k.JWK, &exp, &isCompromised, &didID, &blockNumber, &url); err != nil {
		return nil, err
	}

	k.Exp, k.ExpValid = exp.Int64, exp.Valid
	k.IsCompromised, k.IsCompromisedValid = isCompromised.Bool, isCompromised.Valid
	k.DidID, k.DidIDValid = didID.UUID, didID.Valid
	k.BlockNumber, k.BlockNumberValid = uint64(blockNumber.Int64), blockNumber.Valid
	k.URL, k.URLValid = url.String, url.Valid
	return &k, nil
}

// FindByHashAndDid looks up a PublicKey by its (content_hash, did_id) key,
// used for on-chain-sourced rows.
func (r *PublicKeyRepository) FindByHashAndDid(ctx context.Context, contentHash string, didID uuid.UUID) (*PublicKey, error) {
	row := r.client.DB().QueryRowContext(ctx,
		`SELECT `+publicKeyColumns+` FROM public_key WHERE content_hash = $1 AND did_id = $2`,
		contentHash, didID,
	)
	k, err := scanPublicKey(row)
	if err == sql.ErrNoRows {
		return nil, ErrPublicKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: find public key by hash and did: %w", err)
	}
	return k, nil
}

// FindByHashAndCountry looks up a PublicKey by its (content_hash,
// country_code) key, used for HTTP-sourced rows that carry no did_id.
func (r *PublicKeyRepository) FindByHashAndCountry(ctx context.Context, contentHash, countryCode string) (*PublicKey, error) {
	row := r.client.DB().QueryRowContext(ctx,
		`SELECT `+publicKeyColumns+` FROM public_key WHERE content_hash = $1 AND country_code = $2 AND did_id IS NULL`,
		contentHash, countryCode,
	)
	k, err := scanPublicKey(row)
	if err == sql.ErrNoRows {
		return nil, ErrPublicKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: find public key by hash and country: %w", err)
	}
	return k, nil
}

// InsertParams bundles the optional fields of a PublicKey insert.
type InsertParams struct {
	CountryCode        string
	ContentHash        string
	JWK                []byte
	Exp                int64
	ExpValid           bool
	IsCompromised      bool
	IsCompromisedValid bool
	DidID              uuid.UUID
	DidIDValid         bool
	BlockNumber        uint64
	BlockNumberValid   bool
	URL                string
	URLValid           bool
}

// Insert creates a new PublicKey row.
func (r *PublicKeyRepository) Insert(ctx context.Context, p InsertParams) (*PublicKey, error) {
	k := &PublicKey{
		ID:                 uuid.New(),
		CountryCode:        p.CountryCode,
		ContentHash:        p.ContentHash,
		JWK:                p.JWK,
		Exp:                p.Exp,
		ExpValid:           p.ExpValid,
		IsCompromised:      p.IsCompromised,
		IsCompromisedValid: p.IsCompromisedValid,
		DidID:              p.DidID,
		DidIDValid:         p.DidIDValid,
		BlockNumber:        p.BlockNumber,
		BlockNumberValid:   p.BlockNumberValid,
		URL:                p.URL,
		URLValid:           p.URLValid,
	}

	_, err := r.client.DB().ExecContext(ctx,
		`INSERT INTO public_key (`+publicKeyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		k.ID, k.CountryCode, k.ContentHash, k.JWK,
		sql.NullInt64{Int64: k.Exp, Valid: k.ExpValid},
		sql.NullBool{Bool: k.IsCompromised, Valid: k.IsCompromisedValid},
		uuid.NullUUID{UUID: k.DidID, Valid: k.DidIDValid},
		sql.NullInt64{Int64: int64(k.BlockNumber), Valid: k.BlockNumberValid},
		sql.NullString{String: k.URL, Valid: k.URLValid},
	)
	if err != nil {
		return nil, fmt.Errorf("registry: insert public key: %w", err)
	}
	return k, nil
}

// Update overwrites block_number, exp and is_compromised for an existing
// PublicKey row. Callers are responsible for the newer-wins comparison
// before calling this (spec §3: an incoming event with a smaller block
// number must not overwrite).
func (r *PublicKeyRepository) Update(ctx context.Context, id uuid.UUID, blockNumber uint64, exp int64, isCompromised bool) error {
	res, err := r.client.DB().ExecContext(ctx,
		`UPDATE public_key SET block_number = $1, exp = $2, is_compromised = $3, updated_at = now() WHERE id = $4`,
		blockNumber, exp, isCompromised, id,
	)
	if err != nil {
		return fmt.Errorf("registry: update public key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("registry: update public key rows affected: %w", err)
	}
	if n == 0 {
		return ErrPublicKeyNotFound
	}
	return nil
}

// FindByContentHash returns the first PublicKey row matching contentHash,
// regardless of source. Used by the public-key detail HTTP route, where the
// content hash alone identifies the row a caller wants.
func (r *PublicKeyRepository) FindByContentHash(ctx context.Context, contentHash string) (*PublicKey, error) {
	row := r.client.DB().QueryRowContext(ctx,
		`SELECT `+publicKeyColumns+` FROM public_key WHERE content_hash = $1 LIMIT 1`,
		contentHash,
	)
	k, err := scanPublicKey(row)
	if err == sql.ErrNoRows {
		return nil, ErrPublicKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: find public key by content hash: %w", err)
	}
	return k, nil
}

// FindByCountry returns all PublicKey rows for a country, on-chain and
// HTTP-sourced alike. Used by C7 to build the candidate verification set.
func (r *PublicKeyRepository) FindByCountry(ctx context.Context, countryCode string) ([]*PublicKey, error) {
	rows, err := r.client.DB().QueryContext(ctx,
		`SELECT `+publicKeyColumns+` FROM public_key WHERE country_code = $1`, countryCode,
	)
	if err != nil {
		return nil, fmt.Errorf("registry: find public keys by country: %w", err)
	}
	defer rows.Close()

	var out []*PublicKey
	for rows.Next() {
		k, err := scanPublicKey(rows)
		if err != nil {
			return nil, fmt.Errorf("registry: scan public key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// PaginateByPublicDirectory returns public keys transitively linked to the
// given Public Directory (via did -> pd_did_member -> pd_member), one-based
// paginated, along with the total page count. Page zero is a user error.
func (r *PublicKeyRepository) PaginateByPublicDirectory(ctx context.Context, contractAddress, chainID string, page, size int) ([]*PublicKey, int, error) {
	if page < 1 {
		return nil, 0, ErrInvalidPage
	}
	if size < 1 {
		size = 1
	}

	var total int
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT pk.id)
		 FROM public_key pk
		 JOIN did d ON d.id = pk.did_id
		 JOIN pd_did_member pdm ON pdm.did_id = d.id
		 JOIN pd_member pm ON pm.id = pdm.pd_member_id
		 JOIN public_directory pd ON pd.id = pm.public_directory_id
		 WHERE pd.contract_address = $1 AND pd.chain_id = $2`,
		contractAddress, chainID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("registry: count public keys: %w", err)
	}

	numPages := (total + size - 1) / size
	offset := (page - 1) * size

	rows, err := r.client.DB().QueryContext(ctx,
		`SELECT DISTINCT `+publicKeyColumnsQualified()+`
		 FROM public_key pk
		 JOIN did d ON d.id = pk.did_id
		 JOIN pd_did_member pdm ON pdm.did_id = d.id
		 JOIN pd_member pm ON pm.id = pdm.pd_member_id
		 JOIN public_directory pd ON pd.id = pm.public_directory_id
		 WHERE pd.contract_address = $1 AND pd.chain_id = $2
		 ORDER BY pk.id
		 LIMIT $3 OFFSET $4`,
		contractAddress, chainID, size, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("registry: paginate public keys: %w", err)
	}
	defer rows.Close()

	var out []*PublicKey
	for rows.Next() {
		k, err := scanPublicKey(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("registry: scan public key: %w", err)
		}
		out = append(out, k)
	}
	return out, numPages, rows.Err()
}

func publicKeyColumnsQualified() string {
	return `pk.id, pk.country_code, pk.content_hash, pk.jwk, pk.exp, pk.is_compromised, pk.did_id, pk.block_number, pk.url`
}
