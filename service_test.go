package tezbridge_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertWHurst/tezbridge"
	"github.com/RobertWHurst/tezbridge/engines/taquito"
	jsonencoder "github.com/RobertWHurst/tezbridge/encoders/json"
	"github.com/RobertWHurst/tezbridge/micheline"
	"github.com/RobertWHurst/tezbridge/transports/stdio"
)

func newService(input io.Reader, output io.Writer) *tezbridge.Service {
	bridge := tezbridge.NewBridge(taquito.New())
	return tezbridge.NewService(stdio.New(input, output), jsonencoder.New(), bridge)
}

func lines(input ...string) io.Reader {
	return strings.NewReader(strings.Join(input, "\n") + "\n")
}

func readResponses(t *testing.T, output string) []tezbridge.Response {
	t.Helper()
	var responses []tezbridge.Response
	for _, line := range strings.Split(strings.TrimSuffix(output, "\n"), "\n") {
		if line == "" {
			continue
		}
		var res tezbridge.Response
		require.NoError(t, json.Unmarshal([]byte(line), &res), "response line %q", line)
		responses = append(responses, res)
	}
	return responses
}

type recordingObserver struct {
	mu       sync.Mutex
	requests []string
	fatal    []error
}

func (o *recordingObserver) ObserveRequest(kind tezbridge.RequestKind, status tezbridge.Status, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, string(kind)+"/"+string(status))
}

func (o *recordingObserver) ObserveFatal(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fatal = append(o.fatal, err)
}

func TestServiceAnswersEachLine(t *testing.T) {
	var output bytes.Buffer
	service := newService(lines(
		`{"id":1,"content":{"kind":"Decode","schema":{"prim":"unit"},"michelson":{"prim":"Unit"}}}`,
		`{"id":2,"content":{"kind":"Encode","schema":{"prim":"unit"},"data":{"__unit__":null}}}`,
	), &output)

	require.NoError(t, service.Serve(context.Background()))

	responses := readResponses(t, output.String())
	require.Len(t, responses, 2)

	assert.Equal(t, uint64(1), responses[0].ID)
	assert.Equal(t, tezbridge.StatusSuccess, responses[0].Content.Status)
	assert.JSONEq(t, `{"__unit__":null}`, string(responses[0].Content.Value))

	assert.Equal(t, uint64(2), responses[1].ID)
	assert.Equal(t, tezbridge.StatusSuccess, responses[1].Content.Status)
	assert.JSONEq(t, `{"prim":"Unit"}`, string(responses[1].Content.Value))
}

func TestServiceRecordRoundTrip(t *testing.T) {
	schema := `{"prim":"pair","args":[{"prim":"nat","annots":["%count"]},{"prim":"string","annots":["%owner"]}]}`
	var output bytes.Buffer
	service := newService(lines(
		`{"id":1,"content":{"kind":"Decode","schema":`+schema+`,"michelson":{"prim":"Pair","args":[{"int":"12"},{"string":"tz1"}]}}}`,
		`{"id":2,"content":{"kind":"Encode","schema":`+schema+`,"data":{"count":"12","owner":"tz1"}}}`,
	), &output)

	require.NoError(t, service.Serve(context.Background()))

	responses := readResponses(t, output.String())
	require.Len(t, responses, 2)
	assert.JSONEq(t, `{"count":"12","owner":"tz1"}`, string(responses[0].Content.Value))
	assert.JSONEq(t, `{"prim":"Pair","args":[{"int":"12"},{"string":"tz1"}]}`, string(responses[1].Content.Value))
}

func TestServiceConversionErrorIsAnswered(t *testing.T) {
	var output bytes.Buffer
	service := newService(lines(
		`{"id":1,"content":{"kind":"Decode","schema":{"prim":"nat"},"michelson":{"string":"nope"}}}`,
		`{"id":2,"content":{"kind":"Encode","schema":{"prim":"nat"}}}`,
		`{"id":3,"content":{"kind":"Decode","schema":{"prim":"nat"}}}`,
		`{"id":4,"content":{"kind":"Decode","michelson":{"int":"1"}}}`,
		`{"id":5,"content":{"kind":"Decode","schema":{"prim":"nat"},"michelson":{"int":"1"}}}`,
	), &output)

	require.NoError(t, service.Serve(context.Background()))

	responses := readResponses(t, output.String())
	require.Len(t, responses, 5)
	for _, res := range responses[:4] {
		assert.Equal(t, tezbridge.StatusError, res.Content.Status, "response %d", res.ID)
		assert.NotEmpty(t, res.Content.Error, "response %d", res.ID)
		assert.Empty(t, res.Content.Value, "response %d", res.ID)
	}
	assert.Equal(t, tezbridge.StatusSuccess, responses[4].Content.Status)
	assert.JSONEq(t, `"1"`, string(responses[4].Content.Value))
}

func TestServiceMalformedFrameIsFatal(t *testing.T) {
	var output bytes.Buffer
	observer := &recordingObserver{}
	service := newService(lines(
		`{"id":1,"content":{"kind":"Decode","schema":{"prim":"unit"},"michelson":{"prim":"Unit"}}}`,
		`this is not json`,
		`{"id":2,"content":{"kind":"Decode","schema":{"prim":"unit"},"michelson":{"prim":"Unit"}}}`,
	), &output)
	service.Observer = observer

	err := service.Serve(context.Background())
	require.ErrorIs(t, err, tezbridge.ErrMalformedFrame)

	responses := readResponses(t, output.String())
	require.Len(t, responses, 1)
	assert.Equal(t, uint64(1), responses[0].ID)
	assert.Len(t, observer.fatal, 1)
}

func TestServiceTrailingDataIsFatal(t *testing.T) {
	request := `{"id":1,"content":{"kind":"Decode","schema":{"prim":"unit"},"michelson":{"prim":"Unit"}}}`

	for _, line := range []string{request + ` garbage`, request + request} {
		var output bytes.Buffer
		service := newService(lines(line), &output)

		err := service.Serve(context.Background())
		require.ErrorIs(t, err, tezbridge.ErrMalformedFrame, "line %q", line)
		assert.ErrorIs(t, err, jsonencoder.ErrTrailingData)
		assert.Empty(t, output.String())
	}
}

func TestServiceFrameLargerThanDecodeSize(t *testing.T) {
	oldMax := tezbridge.MaxDecodeSize
	defer func() { tezbridge.MaxDecodeSize = oldMax }()
	tezbridge.MaxDecodeSize = 64

	long := strings.Repeat("tz", 512)
	var output bytes.Buffer
	service := newService(lines(
		`{"id":1,"content":{"kind":"Encode","schema":{"prim":"string"},"data":"`+long+`"}}`,
	), &output)

	require.NoError(t, service.Serve(context.Background()))

	responses := readResponses(t, output.String())
	require.Len(t, responses, 1)
	assert.Equal(t, tezbridge.StatusSuccess, responses[0].Content.Status)
	assert.JSONEq(t, `{"string":"`+long+`"}`, string(responses[0].Content.Value))
}

func TestServiceUnknownKindIsFatal(t *testing.T) {
	var output bytes.Buffer
	service := newService(lines(
		`{"id":1,"content":{"kind":"Transmute","schema":{"prim":"unit"}}}`,
	), &output)

	err := service.Serve(context.Background())
	require.ErrorIs(t, err, tezbridge.ErrUnknownKind)
	assert.Empty(t, output.String())
}

func TestServiceInvalidEncodingIsFatal(t *testing.T) {
	service := newService(strings.NewReader("\xff\xfe\n"), io.Discard)

	err := service.Serve(context.Background())
	require.ErrorIs(t, err, stdio.ErrInvalidEncoding)
}

func TestServiceStopsOnCancel(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()
	service := newService(reader, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServiceConcurrentRequests(t *testing.T) {
	var input []string
	for i := 1; i <= 20; i++ {
		input = append(input, `{"id":`+jsonNumber(i)+`,"content":{"kind":"Decode","schema":{"prim":"int"},"michelson":{"int":"`+jsonNumber(i)+`"}}}`)
	}

	var output bytes.Buffer
	observer := &recordingObserver{}
	service := newService(lines(input...), &output)
	service.Concurrency = 4
	service.Observer = observer

	require.NoError(t, service.Serve(context.Background()))

	responses := readResponses(t, output.String())
	require.Len(t, responses, 20)
	seen := map[uint64]bool{}
	for _, res := range responses {
		assert.Equal(t, tezbridge.StatusSuccess, res.Content.Status)
		assert.JSONEq(t, `"`+jsonNumber(int(res.ID))+`"`, string(res.Content.Value))
		seen[res.ID] = true
	}
	assert.Len(t, seen, 20)
	assert.Len(t, observer.requests, 20)
	assert.Empty(t, observer.fatal)
}

func TestServiceWithClient(t *testing.T) {
	requestReader, requestWriter := io.Pipe()
	responseReader, responseWriter := io.Pipe()

	service := tezbridge.NewService(stdio.New(requestReader, responseWriter), jsonencoder.New(), tezbridge.NewBridge(taquito.New()))
	service.Concurrency = 2
	served := make(chan error, 1)
	go func() {
		served <- service.Serve(context.Background())
		responseWriter.Close()
	}()

	client := tezbridge.NewClient(stdio.New(responseReader, requestWriter), jsonencoder.New())
	client.Start(context.Background())

	schema := micheline.MustParse(`{"prim":"map","args":[{"prim":"string"},{"prim":"bool"}]}`)
	data := tezbridge.Map(tezbridge.F("open", tezbridge.Bool(true)))

	tree, err := client.Encode(context.Background(), schema, data)
	require.NoError(t, err)
	assert.True(t, tree.Equal(micheline.Seq(
		micheline.Prim("Elt", micheline.String("open"), micheline.Prim("True")),
	)), "got %s", tree)

	value, err := client.Decode(context.Background(), schema, tree)
	require.NoError(t, err)
	assert.True(t, value.Equal(data), "got %s", value)

	_, err = client.Decode(context.Background(), schema, micheline.Int("3"))
	var remote *tezbridge.RemoteError
	assert.True(t, errors.As(err, &remote), "got %v", err)

	requestWriter.Close()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after input closed")
	}
	client.Close()
}

func jsonNumber(i int) string {
	data, _ := json.Marshal(i)
	return string(data)
}
