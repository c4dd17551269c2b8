package jsredis

import "github.com/leafsii/jsredis/pkg/kv"

// Client bundles the item store and the membership manager built on it
type Client struct {
	Items *Items
	Sets  *Sets
}

// New creates a Client over store
func New(store kv.Store, opts ...Option) *Client {
	items := NewItems(store, opts...)
	return &Client{Items: items, Sets: NewSets(items)}
}
