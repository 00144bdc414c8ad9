package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"legalestate/events"
)

type memoryCache struct {
	values map[string]string
}

func (m *memoryCache) GetFromCache(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryCache) SetToCache(_ context.Context, key, value string, _ time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memoryCache) DeleteFromCache(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memoryCache) Ping(context.Context) error { return nil }
func (m *memoryCache) Close() error               { return nil }

type indexed struct {
	index string
	id    string
	doc   events.ClientDocument
}

type fakeIndex struct {
	docs     []indexed
	err      error
	failures int
}

func (f *fakeIndex) IndexClient(_ context.Context, index, id string, document any) error {
	if f.err != nil {
		return f.err
	}
	if f.failures > 0 {
		f.failures--
		return errors.New("cluster red")
	}
	f.docs = append(f.docs, indexed{index: index, id: id, doc: document.(events.ClientDocument)})
	return nil
}

func (f *fakeIndex) SearchClients(context.Context, string, map[string]any) ([]json.RawMessage, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteClient(context.Context, string, string) error { return nil }
func (f *fakeIndex) Ping(context.Context) error                        { return nil }
func (f *fakeIndex) Close() error                                      { return nil }

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func encode(t *testing.T, event events.ClientEvent) []byte {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return b
}

func TestHandleIndexesAndCaches(t *testing.T) {
	cache := &memoryCache{values: map[string]string{}}
	index := &fakeIndex{}
	c := newClientConsumer(&fakeReader{}, cache, index, zap.NewNop())
	ctx := context.Background()

	completed := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, c.handle(ctx, encode(t, events.ClientEvent{
		Event: events.EstateSaved,
		Data:  events.ClientDocument{ID: 5, Email: "c@x.com", LawyerID: 1, EstateCompleted: &completed},
	})))

	login := completed.Add(time.Hour)
	require.NoError(t, c.handle(ctx, encode(t, events.ClientEvent{
		Event: events.ClientLoggedIn,
		Data:  events.ClientDocument{ID: 5, Email: "c@x.com", LawyerID: 1, LastLoginAt: &login},
	})))

	require.Len(t, index.docs, 2)
	last := index.docs[1]
	require.Equal(t, "clients", last.index)
	require.Equal(t, "5", last.id)
	require.NotNil(t, last.doc.EstateCompleted)
	require.True(t, completed.Equal(*last.doc.EstateCompleted))
	require.True(t, login.Equal(*last.doc.LastLoginAt))
	require.Contains(t, cache.values, "client:5")
}

func TestHandleDropsBadEvents(t *testing.T) {
	index := &fakeIndex{}
	c := newClientConsumer(&fakeReader{}, nil, index, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.handle(ctx, []byte("not json")))
	require.NoError(t, c.handle(ctx, encode(t, events.ClientEvent{Event: "client_deleted", Data: events.ClientDocument{ID: 1}})))
	require.NoError(t, c.handle(ctx, encode(t, events.ClientEvent{Event: events.ClientInvited})))
	require.Empty(t, index.docs)
}

func invited(t *testing.T, offset int64, clientID uint) kafka.Message {
	t.Helper()
	return kafka.Message{
		Offset: offset,
		Value:  encode(t, events.ClientEvent{Event: events.ClientInvited, Data: events.ClientDocument{ID: clientID}}),
	}
}

func TestProcessMessageRetriesBeforeCommitting(t *testing.T) {
	index := &fakeIndex{failures: 2}
	reader := &fakeReader{msgs: []kafka.Message{invited(t, 10, 1), invited(t, 11, 2)}}
	c := newClientConsumer(reader, nil, index, zap.NewNop())
	c.retryDelay = time.Millisecond
	ctx := context.Background()

	c.processMessage(ctx)
	require.Equal(t, []int64{10}, reader.committed)
	require.Len(t, index.docs, 1)
	require.Equal(t, "1", index.docs[0].id)

	c.processMessage(ctx)
	require.Equal(t, []int64{10, 11}, reader.committed)
	require.Len(t, index.docs, 2)
	require.Equal(t, "2", index.docs[1].id)
}

func TestProcessMessageStopsRetryingOnCancel(t *testing.T) {
	index := &fakeIndex{err: errors.New("cluster red")}
	reader := &fakeReader{msgs: []kafka.Message{invited(t, 10, 1), invited(t, 11, 2)}}
	c := newClientConsumer(reader, nil, index, zap.NewNop())
	c.retryDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c.processMessage(ctx)

	require.Empty(t, reader.committed)
	require.Empty(t, index.docs)
	require.Len(t, reader.msgs, 1, "the next message must not be fetched while one is pending")
}

func TestStartStop(t *testing.T) {
	reader := &fakeReader{}
	c := newClientConsumer(reader, nil, nil, zap.NewNop())
	c.Start(context.Background())
	c.Stop()
}
