package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PublicDirectoryRepository is the C3 store for the PublicDirectory entity.
type PublicDirectoryRepository struct {
	client *Client
}

// NewPublicDirectoryRepository constructs a PublicDirectoryRepository.
func NewPublicDirectoryRepository(client *Client) *PublicDirectoryRepository {
	return &PublicDirectoryRepository{client: client}
}

const publicDirectoryColumns = `id, contract_address, chain_id, upper_block, last_processed_block, last_block_saved`

func scanPublicDirectory(row interface{ Scan(...interface{}) error }) (*PublicDirectory, error) {
	var pd PublicDirectory
	if err := row.Scan(&pd.ID, &pd.ContractAddress, &pd.ChainID, &pd.UpperBlock, &pd.LastProcessedBlock, &pd.LastBlockSaved); err != nil {
		return nil, err
	}
	return &pd, nil
}

// Find looks up a PublicDirectory by exact (contract, chain) match.
func (r *PublicDirectoryRepository) Find(ctx context.Context, contractAddress, chainID string) (*PublicDirectory, error) {
	row := r.client.DB().QueryRowContext(ctx,
		`SELECT `+publicDirectoryColumns+` FROM public_directory WHERE contract_address = $1 AND chain_id = $2`,
		contractAddress, chainID,
	)
	pd, err := scanPublicDirectory(row)
	if err == sql.ErrNoRows {
		return nil, ErrPublicDirectoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: find public directory: %w", err)
	}
	return pd, nil
}

// Insert creates a new PublicDirectory row.
func (r *PublicDirectoryRepository) Insert(ctx context.Context, contractAddress, chainID string, upperBlock, lastProcessedBlock, lastBlockSaved uint64) (*PublicDirectory, error) {
	pd := &PublicDirectory{
		ID:                 uuid.New(),
		ContractAddress:    contractAddress,
		ChainID:            chainID,
		UpperBlock:         upperBlock,
		LastProcessedBlock: lastProcessedBlock,
		LastBlockSaved:     lastBlockSaved,
	}
	_, err := r.client.DB().ExecContext(ctx,
		`INSERT INTO public_directory (`+publicDirectoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		pd.ID, pd.ContractAddress, pd.ChainID, pd.UpperBlock, pd.LastProcessedBlock, pd.LastBlockSaved,
	)
	if err != nil {
		return nil, fmt.Errorf("registry: insert public directory: %w", err)
	}
	return pd, nil
}

// Update persists new cursor values for an existing PublicDirectory row.
func (r *PublicDirectoryRepository) Update(ctx context.Context, id uuid.UUID, upperBlock, lastProcessedBlock, lastBlockSaved uint64) error {
	res, err := r.client.DB().ExecContext(ctx,
		`UPDATE public_directory SET upper_block = $1, last_processed_block = $2, last_block_saved = $3, updated_at = now() WHERE id = $4`,
		upperBlock, lastProcessedBlock, lastBlockSaved, id,
	)
	if err != nil {
		return fmt.Errorf("registry: update public directory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("registry: update public directory rows affected: %w", err)
	}
	if n == 0 {
		return ErrPublicDirectoryNotFound
	}
	return nil
}

// SaveContractLastBlock is the upsert described in spec §4.3: on update it
// sets upper_block=tip, last_processed_block=0 and leaves last_block_saved
// untouched; on insert it sets all three cursors to (tip, 0, 0).
func (r *PublicDirectoryRepository) SaveContractLastBlock(ctx context.Context, contractAddress, chainID string, tip uint64) (*PublicDirectory, error) {
	existing, err := r.Find(ctx, contractAddress, chainID)
	if err == ErrPublicDirectoryNotFound {
		return r.Insert(ctx, contractAddress, chainID, tip, 0, 0)
	}
	if err != nil {
		return nil, err
	}

	if err := r.Update(ctx, existing.ID, tip, 0, existing.LastBlockSaved); err != nil {
		return nil, err
	}
	existing.UpperBlock = tip
	existing.LastProcessedBlock = 0
	return existing, nil
}
