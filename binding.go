package tezbridge

import "context"

// Binding waits for the response to one request. It is registered with
// the client before the request is sent so the response cannot be missed.
type Binding struct {
	client       *Client
	id           uint64
	responseChan chan *Response
}

func newBinding(client *Client, id uint64) *Binding {
	b := &Binding{
		client:       client,
		id:           id,
		responseChan: make(chan *Response, 1),
	}

	client.bindingsMu.Lock()
	defer client.bindingsMu.Unlock()
	client.bindings[id] = b

	return b
}

// Next blocks until the response arrives, ctx is done, or the client shuts
// down.
func (b *Binding) Next(ctx context.Context) (*Response, error) {
	select {
	case res := <-b.responseChan:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.client.done:
		return nil, b.client.err
	}
}

// Unbind removes the binding from the client. A response arriving after
// Unbind is dropped.
func (b *Binding) Unbind() {
	b.client.bindingsMu.Lock()
	defer b.client.bindingsMu.Unlock()
	if b.client.bindings[b.id] == b {
		delete(b.client.bindings, b.id)
	}
}

// IsBound reports whether the binding is still registered.
func (b *Binding) IsBound() bool {
	b.client.bindingsMu.RLock()
	defer b.client.bindingsMu.RUnlock()
	return b.client.bindings[b.id] == b
}
