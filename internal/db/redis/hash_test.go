package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/workflows/internal/db"
)

func TestHSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "HSET" && cmd[1] == "job:1" && cmd[2] == "status" && cmd[3] == "complete"
		})).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.HSet(context.Background(), "job:1", map[string]string{"status": "complete"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.HSet(context.Background(), "job:1", map[string]string{"f": "v"})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpHSet {
		t.Fatalf("err = %v, want db.Error{Op: HSET}", err)
	}
}

func TestHSetMulti(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisInt64(1)),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "a", Fields: map[string]string{"f": "1"}},
		{Key: "b", Fields: map[string]string{"f": "2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

func TestHGetAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "job:1")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"status":     mock.RedisString("inprogress"),
			"updated_at": mock.RedisString("2026-01-01T00:00:00Z"),
		})))

	s := NewStoreForTest(c)
	m, err := s.HGetAll(context.Background(), "job:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["status"] != "inprogress" || len(m) != 2 {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestHDel(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HDEL", "job:1", "output")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.HDel(context.Background(), "job:1", "output"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// no fields: no round-trip
	if err := s.HDel(context.Background(), "job:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelAndExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("DEL", "k")).Return(mock.Result(mock.RedisInt64(1))),
		c.EXPECT().Do(gomock.Any(), mock.Match("EXISTS", "k")).Return(mock.Result(mock.RedisInt64(0))),
	)

	s := NewStoreForTest(c)
	if err := s.Del(context.Background(), "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	exists, err := s.Exists(context.Background(), "k")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected false")
	}
}
