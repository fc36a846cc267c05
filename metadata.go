package multitoken

import (
	"context"

	"github.com/xraph/multitoken/state"
	"github.com/xraph/multitoken/token"
)

// metadataExtension is the optional metadata store. The disabled variant
// stores nothing and rejects metadata passed to it.
type metadataExtension interface {
	enabled() bool
	get(ctx context.Context, tx *state.Tx, tokenID token.ID) (*token.Metadata, error)
	put(ctx context.Context, tx *state.Tx, tokenID token.ID, md *token.Metadata) error
	remove(ctx context.Context, tx *state.Tx, tokenID token.ID) error
}

func newMetadataExtension(enabled bool) metadataExtension {
	if enabled {
		return metadataStore{}
	}
	return noMetadata{}
}

type metadataStore struct{}

func (metadataStore) enabled() bool { return true }

func (metadataStore) get(ctx context.Context, tx *state.Tx, tokenID token.ID) (*token.Metadata, error) {
	md, _, err := tx.Metadata(ctx, tokenID)
	return md, err
}

func (metadataStore) put(ctx context.Context, tx *state.Tx, tokenID token.ID, md *token.Metadata) error {
	if md == nil {
		return nil
	}
	return tx.PutMetadata(ctx, tokenID, md)
}

func (metadataStore) remove(ctx context.Context, tx *state.Tx, tokenID token.ID) error {
	return tx.DeleteMetadata(ctx, tokenID)
}

type noMetadata struct{}

func (noMetadata) enabled() bool { return false }

func (noMetadata) get(context.Context, *state.Tx, token.ID) (*token.Metadata, error) {
	return nil, nil
}

func (noMetadata) put(_ context.Context, _ *state.Tx, _ token.ID, md *token.Metadata) error {
	if md != nil {
		return ErrMetadataDisabled
	}
	return nil
}

func (noMetadata) remove(context.Context, *state.Tx, token.ID) error { return nil }
