package tezbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RobertWHurst/tezbridge/micheline"
)

var (
	// ErrUnknownKind is returned from Serve when a request names a kind
	// other than Encode or Decode.
	ErrUnknownKind = errors.New("tezbridge: unknown request kind")

	// ErrMalformedFrame is returned from Serve when a frame cannot be
	// decoded as a request envelope.
	ErrMalformedFrame = errors.New("tezbridge: malformed frame")
)

// Observer is notified of request outcomes. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveRequest(kind RequestKind, status Status, duration time.Duration)
	ObserveFatal(err error)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(RequestKind, Status, time.Duration) {}
func (noopObserver) ObserveFatal(error)                                {}

// Service answers Encode and Decode requests arriving on a transport.
//
// Conversion failures are answered with an error response and the service
// carries on. A frame that is not a request envelope, a request of unknown
// kind, or a response that cannot be written ends Serve with an error.
type Service struct {
	transport Transport
	encoder   Encoder
	bridge    *Bridge

	// Concurrency is the number of requests converted at once. With 1, the
	// default, each request completes before the next starts and responses
	// follow request order. With more, responses are written in completion
	// order and clients must correlate them by id.
	Concurrency int

	// Logger receives per-request debug output. If nil, slog.Default() is
	// used.
	Logger *slog.Logger

	// Observer, if set, is notified of every request and fatal error.
	Observer Observer
}

// NewService creates a Service reading requests from transport.
func NewService(transport Transport, encoder Encoder, bridge *Bridge) *Service {
	return &Service{
		transport:   transport,
		encoder:     encoder,
		bridge:      bridge,
		Concurrency: 1,
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) observer() Observer {
	if s.Observer != nil {
		return s.Observer
	}
	return noopObserver{}
}

// job is an accepted request waiting for conversion. err holds a content
// problem to be answered with an error response.
type job struct {
	msg     *Message
	id      uint64
	content RequestContent
	err     error
}

// Serve handles requests until the transport's input ends, which returns
// nil once in-flight requests are answered, until ctx is canceled, which
// also returns nil, or until a fatal error, which is returned.
func (s *Service) Serve(ctx context.Context) error {
	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	err := s.transport.Listen(groupCtx, func(frame io.Reader, reply func(io.Reader) error) error {
		j, err := s.accept(newMessage(s.encoder, frame, reply))
		if err != nil {
			return err
		}
		group.Go(func() error {
			return s.handle(groupCtx, j)
		})
		return nil
	})
	if waitErr := group.Wait(); waitErr != nil {
		err = waitErr
	}

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	if err != nil {
		s.observer().ObserveFatal(err)
	}
	return err
}

func (s *Service) accept(msg *Message) (*job, error) {
	var envelope inboundRequest
	if err := msg.Into(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	content, err := parseContent(envelope.Content)
	if errors.Is(err, ErrUnknownKind) {
		return nil, err
	}
	return &job{msg: msg, id: envelope.ID, content: content, err: err}, nil
}

func (s *Service) handle(ctx context.Context, j *job) error {
	if ctx.Err() != nil {
		return nil
	}

	start := time.Now()
	var content ResponseContent
	if j.err != nil {
		content = errorContent(j.err)
	} else {
		content = s.convert(ctx, j.content)
	}
	duration := time.Since(start)

	s.observer().ObserveRequest(j.content.Kind, content.Status, duration)
	s.logger().Debug("handled request",
		"id", j.id,
		"kind", j.content.Kind,
		"status", content.Status,
		"duration", duration,
	)

	if err := j.msg.Reply(&Response{ID: j.id, Content: content}); err != nil {
		return fmt.Errorf("writing response %d: %w", j.id, err)
	}
	return nil
}

func (s *Service) convert(ctx context.Context, content RequestContent) ResponseContent {
	var result any
	var err error
	switch content.Kind {
	case EncodeRequest:
		result, err = s.bridge.EncodeFromCanonical(ctx, content.Schema, *content.Data)
	case DecodeRequest:
		result, err = s.bridge.DecodeToCanonical(ctx, content.Schema, *content.Michelson)
	}
	if err != nil {
		return errorContent(err)
	}

	value, err := json.Marshal(result)
	if err != nil {
		return errorContent(err)
	}
	return ResponseContent{Status: StatusSuccess, Value: value}
}

func errorContent(err error) ResponseContent {
	return ResponseContent{Status: StatusError, Error: err.Error()}
}

// parseContent reads a request body. Only an unknown kind is reported
// with ErrUnknownKind; every other problem is answerable.
func parseContent(raw json.RawMessage) (RequestContent, error) {
	var body rawContent
	if err := json.Unmarshal(raw, &body); err != nil {
		return RequestContent{}, fmt.Errorf("reading request content: %w", err)
	}

	content := RequestContent{Kind: body.Kind}
	switch body.Kind {
	case EncodeRequest, DecodeRequest:
	default:
		return content, fmt.Errorf("%w: %q", ErrUnknownKind, body.Kind)
	}

	if len(body.Schema) == 0 {
		return content, errors.New("request has no schema")
	}
	schema, err := micheline.Parse(body.Schema)
	if err != nil {
		return content, fmt.Errorf("reading schema: %w", err)
	}
	content.Schema = schema

	switch body.Kind {
	case EncodeRequest:
		data := Null()
		if len(body.Data) > 0 {
			if data, err = ParseValue(body.Data); err != nil {
				return content, fmt.Errorf("reading data: %w", err)
			}
		}
		content.Data = &data
	case DecodeRequest:
		if len(body.Michelson) == 0 {
			return content, errors.New("decode request has no michelson")
		}
		tree, err := micheline.Parse(body.Michelson)
		if err != nil {
			return content, fmt.Errorf("reading michelson: %w", err)
		}
		content.Michelson = &tree
	}
	return content, nil
}
