// ABOUTME: Persistence gateway storing device state in Charm KV.
// ABOUTME: Keys are namespaced per device so paired devices never share session state.
package charm

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/fitcore/internal/storage"
)

const statePrefix = "state:"

// Gateway implements storage.Gateway over a Charm KV client.
type Gateway struct {
	client *Client
	device string
}

var _ storage.Gateway = (*Gateway)(nil)

// NewGateway stores keys for device in client.
func NewGateway(client *Client, device string) *Gateway {
	return &Gateway{client: client, device: device}
}

func (g *Gateway) key(k string) string {
	return statePrefix + g.device + ":" + k
}

// Get returns storage.ErrNotFound for absent keys.
func (g *Gateway) Get(key string) ([]byte, error) {
	data, err := g.client.get(g.key(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("charm get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value at key.
func (g *Gateway) Set(key string, value []byte) error {
	if err := g.client.set(g.key(key), value); err != nil {
		return fmt.Errorf("charm set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key succeeds.
func (g *Gateway) Delete(key string) error {
	err := g.client.delete(g.key(key))
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("charm delete %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (g *Gateway) Close() error {
	return g.client.Close()
}
