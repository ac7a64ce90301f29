package memory

import (
	"context"
	"sort"
	"time"

	"bchat/internal/app/realtime"
	domainfriends "bchat/internal/domain/friends"
	domainuser "bchat/internal/domain/user"
)

// RequestRepository implements domainfriends.RequestRepository.
type RequestRepository struct {
	store *Store
	unit  *Unit
}

func NewRequestRepository(store *Store) *RequestRepository {
	return &RequestRepository{store: store}
}

var _ domainfriends.RequestRepository = (*RequestRepository)(nil)

func requestPath(id domainfriends.RequestID) string {
	return "friendRequests/" + string(id)
}

func (r *RequestRepository) submit(o op) error {
	if r.unit != nil {
		return r.unit.stage(o)
	}
	return r.store.run(o)
}

func (r *RequestRepository) ByID(ctx context.Context, id domainfriends.RequestID) (*domainfriends.Request, error) {
	var out *domainfriends.Request
	err := r.store.read(requestPath(id), "get", func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return domainfriends.ErrRequestNotFound
		}
		out = cloneRequest(req)
		return nil
	})
	return out, err
}

func (r *RequestRepository) Create(ctx context.Context, req *domainfriends.Request) error {
	stored := cloneRequest(req)
	return r.submit(op{
		collection: realtime.CollectionRequests,
		path:       requestPath(req.ID),
		operation:  "create",
		payload:    stored,
		apply: func(st *state) error {
			if _, ok := st.requests[stored.ID]; ok {
				return domainfriends.ErrAlreadyExists
			}
			st.requests[stored.ID] = stored
			return nil
		},
	})
}

func (r *RequestRepository) SetStatus(ctx context.Context, id domainfriends.RequestID, status domainfriends.Status, at time.Time) error {
	return r.submit(op{
		collection: realtime.CollectionRequests,
		path:       requestPath(id),
		operation:  "update",
		payload:    status,
		apply: func(st *state) error {
			req, ok := st.requests[id]
			if !ok {
				return domainfriends.ErrRequestNotFound
			}
			next := cloneRequest(req)
			next.Status = status
			next.RespondedAt = at
			st.requests[id] = next
			return nil
		},
	})
}

func (r *RequestRepository) Delete(ctx context.Context, id domainfriends.RequestID) error {
	return r.submit(op{
		collection: realtime.CollectionRequests,
		path:       requestPath(id),
		operation:  "delete",
		apply: func(st *state) error {
			if _, ok := st.requests[id]; !ok {
				return domainfriends.ErrRequestNotFound
			}
			delete(st.requests, id)
			return nil
		},
	})
}

func (r *RequestRepository) ListIncoming(ctx context.Context, to domainuser.ID) ([]*domainfriends.Request, error) {
	var out []*domainfriends.Request
	err := r.store.read("friendRequests", "list", func(st *state) error {
		for _, req := range st.requests {
			if req.To == to && req.Status == domainfriends.StatusPending {
				out = append(out, cloneRequest(req))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
