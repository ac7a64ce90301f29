package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"bchat/internal/app/realtime"
	domainuser "bchat/internal/domain/user"
)

// UserRepository implements domainuser.Repository over the shared store.
// With a unit attached, writes stage until Commit; reads always see committed
// state.
type UserRepository struct {
	store *Store
	unit  *Unit
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

var _ domainuser.Repository = (*UserRepository)(nil)

func userPath(id domainuser.ID) string {
	return "users/" + string(id)
}

func (r *UserRepository) submit(o op) error {
	if r.unit != nil {
		return r.unit.stage(o)
	}
	return r.store.run(o)
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var out *domainuser.User
	err := r.store.read(userPath(id), "get", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return domainuser.ErrNotFound
		}
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	var out *domainuser.User
	err := r.store.read("users", "list", func(st *state) error {
		id, ok := st.emails[key]
		if !ok {
			return domainuser.ErrNotFound
		}
		u, ok := st.users[id]
		if !ok {
			return domainuser.ErrNotFound
		}
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (r *UserRepository) ByIDs(ctx context.Context, ids []domainuser.ID) ([]*domainuser.User, error) {
	out := make([]*domainuser.User, 0, len(ids))
	err := r.store.read("users", "list", func(st *state) error {
		for _, id := range ids {
			if u, ok := st.users[id]; ok {
				out = append(out, cloneUser(u))
			}
		}
		return nil
	})
	return out, err
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	if u == nil || strings.TrimSpace(string(u.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	emailKey := strings.ToLower(strings.TrimSpace(u.Email))
	if emailKey == "" {
		return domainuser.ErrEmailRequired
	}
	stored := cloneUser(u)
	return r.submit(op{
		collection: realtime.CollectionUsers,
		path:       userPath(u.ID),
		operation:  "create",
		payload:    stored,
		apply: func(st *state) error {
			if existing, ok := st.emails[emailKey]; ok && existing != stored.ID {
				return domainuser.ErrEmailAlreadyUsed
			}
			st.emails[emailKey] = stored.ID
			st.users[stored.ID] = stored
			return nil
		},
	})
}

func (r *UserRepository) Search(ctx context.Context, params domainuser.SearchParams) ([]*domainuser.User, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, nil
	}
	code := strings.ToUpper(query)
	prefix := strings.ToLower(query)
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	var out []*domainuser.User
	err := r.store.read("users", "list", func(st *state) error {
		for _, u := range st.users {
			if u.ID == params.Exclude {
				continue
			}
			if strings.HasPrefix(strings.ToLower(u.DisplayName), prefix) || u.FriendCode == code {
				out = append(out, cloneUser(u))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UserRepository) SetPresence(ctx context.Context, id domainuser.ID, online bool, at time.Time) error {
	return r.submit(op{
		collection: realtime.CollectionUsers,
		path:       userPath(id),
		operation:  "update",
		apply: func(st *state) error {
			u, ok := st.users[id]
			if !ok {
				return domainuser.ErrNotFound
			}
			next := cloneUser(u)
			next.Online = online
			next.LastActive = at
			next.UpdatedAt = laterOf(next.UpdatedAt, at)
			st.users[id] = next
			return nil
		},
	})
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id domainuser.ID, update domainuser.ProfileUpdate) error {
	return r.submit(op{
		collection: realtime.CollectionUsers,
		path:       userPath(id),
		operation:  "update",
		payload:    update,
		apply: func(st *state) error {
			u, ok := st.users[id]
			if !ok {
				return domainuser.ErrNotFound
			}
			next := cloneUser(u)
			if update.DisplayName != nil && strings.TrimSpace(*update.DisplayName) != "" {
				next.DisplayName = strings.TrimSpace(*update.DisplayName)
			}
			if update.PhotoURL != nil {
				next.PhotoURL = *update.PhotoURL
			}
			if update.Bio != nil {
				next.Bio = *update.Bio
			}
			if update.Status != nil {
				next.Status = *update.Status
			}
			next.UpdatedAt = time.Now()
			st.users[id] = next
			return nil
		},
	})
}

func (r *UserRepository) AddFriend(ctx context.Context, id, friend domainuser.ID) error {
	return r.submit(op{
		collection: realtime.CollectionUsers,
		path:       userPath(id),
		operation:  "update",
		payload:    friend,
		apply: func(st *state) error {
			u, ok := st.users[id]
			if !ok {
				return domainuser.ErrNotFound
			}
			if u.HasFriend(friend) {
				return nil
			}
			next := cloneUser(u)
			next.Friends = append(next.Friends, friend)
			st.users[id] = next
			return nil
		},
	})
}
