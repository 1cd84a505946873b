package tezbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RobertWHurst/tezbridge/micheline"
)

// DefaultRequestTimeout bounds a request when the client sets no
// RequestTimeout.
const DefaultRequestTimeout = 30 * time.Second

// Encode asks the service to encode canonical data against schema and
// returns the resulting Michelson tree.
func (c *Client) Encode(ctx context.Context, schema micheline.Node, data Value) (micheline.Node, error) {
	content, err := c.RequestWithCtx(ctx, RequestContent{Kind: EncodeRequest, Schema: schema, Data: &data})
	if err != nil {
		return micheline.Node{}, err
	}
	tree, err := micheline.Parse(content.Value)
	if err != nil {
		return micheline.Node{}, fmt.Errorf("reading encoded value: %w", err)
	}
	return tree, nil
}

// Decode asks the service to decode a Michelson tree against schema and
// returns the canonical value.
func (c *Client) Decode(ctx context.Context, schema micheline.Node, tree micheline.Node) (Value, error) {
	content, err := c.RequestWithCtx(ctx, RequestContent{Kind: DecodeRequest, Schema: schema, Michelson: &tree})
	if err != nil {
		return Value{}, err
	}
	value, err := ParseValue(content.Value)
	if err != nil {
		return Value{}, fmt.Errorf("reading decoded value: %w", err)
	}
	return value, nil
}

// Schemed is implemented by storage types that know their own Micheline
// type schema.
type Schemed interface {
	MichelsonSchema() (micheline.Node, error)
}

// ErrNoSchema is returned by EncodeStruct and DecodeStruct when no schema
// is given and the value does not implement Schemed.
var ErrNoSchema = errors.New("tezbridge: no schema for value")

// EncodeStruct marshals v with encoding/json, then encodes the canonical
// result against schema. A zero schema is taken from v's MichelsonSchema.
// Fields bind by their json tags, and MichelsonMap, JSONUnit, and JSONEnum
// supply the sentinel forms.
func (c *Client) EncodeStruct(ctx context.Context, schema micheline.Node, v any) (micheline.Node, error) {
	schema, err := schemaFor(schema, v)
	if err != nil {
		return micheline.Node{}, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return micheline.Node{}, fmt.Errorf("marshalling %T: %w", v, err)
	}
	value, err := ParseValue(data)
	if err != nil {
		return micheline.Node{}, fmt.Errorf("reading %T as canonical JSON: %w", v, err)
	}
	return c.Encode(ctx, schema, value)
}

// DecodeStruct decodes tree against schema and unmarshals the canonical
// result into v, which must be a pointer. A zero schema is taken from v's
// MichelsonSchema.
func (c *Client) DecodeStruct(ctx context.Context, schema micheline.Node, tree micheline.Node, v any) error {
	schema, err := schemaFor(schema, v)
	if err != nil {
		return err
	}
	value, err := c.Decode(ctx, schema, tree)
	if err != nil {
		return err
	}
	data, err := value.MarshalJSON()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshalling into %T: %w", v, err)
	}
	return nil
}

func schemaFor(schema micheline.Node, v any) (micheline.Node, error) {
	if schema.Kind != micheline.KindInvalid {
		return schema, nil
	}
	schemed, ok := v.(Schemed)
	if !ok {
		return micheline.Node{}, fmt.Errorf("%w: %T", ErrNoSchema, v)
	}
	return schemed.MichelsonSchema()
}

// RequestWithTimeout sends a request and waits at most timeout for its
// response.
func (c *Client) RequestWithTimeout(content RequestContent, timeout time.Duration) (*ResponseContent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.RequestWithCtx(ctx, content)
}

// RequestWithCtx sends a request and waits for its response until ctx is
// done or the client's RequestTimeout passes. An error response is
// returned as a *RemoteError.
func (c *Client) RequestWithCtx(ctx context.Context, content RequestContent) (*ResponseContent, error) {
	select {
	case <-c.done:
		return nil, c.err
	default:
	}

	if c.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	binding := newBinding(c, id)
	defer binding.Unbind()

	data, err := intoDataReader(c.encoder, &Request{ID: id, Content: content})
	if err != nil {
		return nil, err
	}
	if err := c.transport.Send(data); err != nil {
		return nil, fmt.Errorf("sending request %d: %w", id, err)
	}

	res, err := binding.Next(ctx)
	if err != nil {
		return nil, err
	}
	if res.Content.Status != StatusSuccess {
		return nil, &RemoteError{Kind: content.Kind, Message: res.Content.Error}
	}
	return &res.Content, nil
}
