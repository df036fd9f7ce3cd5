package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// Resources is a generic JSON client for one backend collection such as
// /classes or /teachers. Results are left undecoded for the caller.
type Resources struct {
	api  API
	path string
}

// NewResources returns a client for the collection at path.
func NewResources(api API, path string) *Resources {
	return &Resources{api: api, path: "/" + strings.Trim(path, "/")}
}

func (r *Resources) item(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("empty id")
	}
	return r.path + "/" + url.PathEscape(id), nil
}

// List returns the collection, optionally filtered by query.
func (r *Resources) List(ctx context.Context, query url.Values) (json.RawMessage, error) {
	p := r.path
	if len(query) > 0 {
		p += "?" + query.Encode()
	}
	var out json.RawMessage
	err := r.api.Get(ctx, p, &out)
	return out, err
}

// Get returns one item.
func (r *Resources) Get(ctx context.Context, id string) (json.RawMessage, error) {
	p, err := r.item(id)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	err = r.api.Get(ctx, p, &out)
	return out, err
}

// Create posts a new item and returns the stored representation.
func (r *Resources) Create(ctx context.Context, in any) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.api.Post(ctx, r.path, in, &out)
	return out, err
}

// Update replaces an item.
func (r *Resources) Update(ctx context.Context, id string, in any) (json.RawMessage, error) {
	p, err := r.item(id)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	err = r.api.Put(ctx, p, in, &out)
	return out, err
}

// Delete removes an item.
func (r *Resources) Delete(ctx context.Context, id string) error {
	p, err := r.item(id)
	if err != nil {
		return err
	}
	return r.api.Delete(ctx, p, nil)
}
