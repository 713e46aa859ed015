package profiles

import "context"

// Repo stores profile rows. The identity backends materialise profiles into it.
type Repo interface {
	Upsert(ctx context.Context, profile *Profile) error
	Get(ctx context.Context, id string) (*Profile, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Profile, error)
	SetAvatarURL(ctx context.Context, id, url string) error
}
