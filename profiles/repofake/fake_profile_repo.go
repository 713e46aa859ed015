package fakeprofilerepo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/profiles"
)

var _ profiles.Repo = (*FakeProfileRepo)(nil)

type FakeProfileRepo struct {
	profiles map[string]profiles.Profile
	lock     sync.RWMutex
}

func NewFakeProfileRepo() *FakeProfileRepo {
	return &FakeProfileRepo{
		profiles: make(map[string]profiles.Profile),
	}
}

func (pr *FakeProfileRepo) Upsert(_ context.Context, profile *profiles.Profile) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()

	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	pr.profiles[profile.ID] = *profile
	return nil
}

// Get returns a copy so callers can't mutate the stored row
func (pr *FakeProfileRepo) Get(_ context.Context, id string) (*profiles.Profile, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	p, ok := pr.profiles[id]
	if !ok {
		return nil, dasherrors.ErrProfileNotFound
	}
	return &p, nil
}

func (pr *FakeProfileRepo) Delete(_ context.Context, id string) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()

	if _, ok := pr.profiles[id]; !ok {
		return dasherrors.ErrProfileNotFound
	}
	delete(pr.profiles, id)
	return nil
}

func (pr *FakeProfileRepo) List(_ context.Context) ([]*profiles.Profile, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	list := make([]*profiles.Profile, 0, len(pr.profiles))
	for _, p := range pr.profiles {
		p := p
		list = append(list, &p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Email < list[j].Email
	})
	return list, nil
}

func (pr *FakeProfileRepo) SetAvatarURL(_ context.Context, id, url string) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()

	p, ok := pr.profiles[id]
	if !ok {
		return dasherrors.ErrProfileNotFound
	}
	p.AvatarURL = url
	pr.profiles[id] = p
	return nil
}
