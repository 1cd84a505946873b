package tezbridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/RobertWHurst/tezbridge/micheline"
)

func TestClientEncode(t *testing.T) {
	var captured Request
	transport := newLoopbackTransport(func(req Request) Response {
		captured = req
		return Response{ID: req.ID, Content: ResponseContent{
			Status: StatusSuccess,
			Value:  json.RawMessage(`{"prim":"Pair","args":[{"int":"1"},{"string":"a"}]}`),
		}}
	})

	client := NewClient(transport, jsonEncoder{})
	client.Start(context.Background())
	defer client.Close()

	schema := micheline.Prim("pair", micheline.Prim("nat"), micheline.Prim("string"))
	tree, err := client.Encode(context.Background(), schema, Record(F("0", Number("1")), F("1", String("a"))))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	expected := micheline.Prim("Pair", micheline.Int("1"), micheline.String("a"))
	if !tree.Equal(expected) {
		t.Errorf("Expected %s, got %s", expected, tree)
	}
	if captured.Content.Kind != EncodeRequest {
		t.Errorf("Expected kind Encode, got %s", captured.Content.Kind)
	}
	if captured.Content.Data == nil || !captured.Content.Data.Equal(Record(F("0", Number("1")), F("1", String("a")))) {
		t.Errorf("Expected data to be sent, got %v", captured.Content.Data)
	}
}

func TestClientDecode(t *testing.T) {
	transport := newLoopbackTransport(func(req Request) Response {
		return Response{ID: req.ID, Content: ResponseContent{
			Status: StatusSuccess,
			Value:  json.RawMessage(`{"MichelsonMap":{"1":{"__unit__":null}}}`),
		}}
	})

	client := NewClient(transport, jsonEncoder{})
	client.Start(context.Background())
	defer client.Close()

	value, err := client.Decode(context.Background(), micheline.Prim("unit"), micheline.Prim("Unit"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	expected := Map(F("1", Unit()))
	if !value.Equal(expected) {
		t.Errorf("Expected %s, got %s", expected, value)
	}
}

func TestClientRemoteError(t *testing.T) {
	transport := newLoopbackTransport(func(req Request) Response {
		return Response{ID: req.ID, Content: ResponseContent{Status: StatusError, Error: "bad value"}}
	})

	client := NewClient(transport, jsonEncoder{})
	client.Start(context.Background())
	defer client.Close()

	_, err := client.Decode(context.Background(), micheline.Prim("unit"), micheline.Prim("Unit"))

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Expected *RemoteError, got %v", err)
	}
	if remote.Kind != DecodeRequest || remote.Message != "bad value" {
		t.Errorf("Unexpected remote error %+v", remote)
	}
}

func TestClientRequestWithTimeout(t *testing.T) {
	client := NewClient(&mockTransport{}, jsonEncoder{})
	client.Start(context.Background())
	defer client.Close()

	start := time.Now()
	_, err := client.RequestWithTimeout(unitDecodeRequest(), 20*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Request took too long to time out")
	}
}

func TestClientRequestTimeoutField(t *testing.T) {
	client := NewClient(&mockTransport{}, jsonEncoder{})
	client.RequestTimeout = 20 * time.Millisecond
	client.Start(context.Background())
	defer client.Close()

	_, err := client.RequestWithCtx(context.Background(), unitDecodeRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestClientRequestWithCtxCanceled(t *testing.T) {
	client := NewClient(&mockTransport{}, jsonEncoder{})
	client.Start(context.Background())
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.RequestWithCtx(ctx, unitDecodeRequest())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestClientRequestSendError(t *testing.T) {
	sendErr := errors.New("pipe closed")
	transport := &mockTransport{
		sendFunc: func(io.Reader) error { return sendErr },
	}

	client := NewClient(transport, jsonEncoder{})
	client.Start(context.Background())
	defer client.Close()

	_, err := client.RequestWithCtx(context.Background(), unitDecodeRequest())
	if !errors.Is(err, sendErr) {
		t.Errorf("Expected send error, got %v", err)
	}
}

func TestClientRequestIDsIncrease(t *testing.T) {
	var ids []uint64
	transport := newLoopbackTransport(func(req Request) Response {
		ids = append(ids, req.ID)
		return Response{ID: req.ID, Content: ResponseContent{Status: StatusSuccess, Value: json.RawMessage(`null`)}}
	})

	client := NewClient(transport, jsonEncoder{})
	client.Start(context.Background())
	defer client.Close()

	for i := 0; i < 3; i++ {
		if _, err := client.RequestWithCtx(context.Background(), unitDecodeRequest()); err != nil {
			t.Fatalf("Request failed: %v", err)
		}
	}

	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("Expected ids [1 2 3], got %v", ids)
	}
}

func BenchmarkClientRequest(b *testing.B) {
	transport := newLoopbackTransport(func(req Request) Response {
		return Response{ID: req.ID, Content: ResponseContent{Status: StatusSuccess, Value: json.RawMessage(`null`)}}
	})

	client := NewClient(transport, jsonEncoder{})
	client.Start(context.Background())
	defer client.Close()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client.RequestWithCtx(ctx, unitDecodeRequest())
	}
}
