package utils

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_retry(t *testing.T) {
	t.Run("allegro", func(t *testing.T) {
		retry := 3
		nums := 0
		err := Retry(retry, func() error {
			nums++
			return fmt.Errorf("xxx")
		})
		assert.Error(t, err)
		assert.Equal(t, retry+1, nums)
	})
	t.Run("normal", func(t *testing.T) {
		nums := 0
		require.NoError(t, Retry(0, func() error {
			nums++
			return nil
		}))
		assert.Equal(t, 1, nums)
	})
	t.Run("running error", func(t *testing.T) {
		nums := 0
		require.NoError(t, Retry(3, func() error {
			nums++
			if nums == 1 {
				return fmt.Errorf("xxx")
			}
			return nil
		}))
		assert.Equal(t, 2, nums)
	})
}

func Test_Deduplication(t *testing.T) {
	d := NewDeduplication(100 * time.Millisecond)
	defer d.Stop()
	assert.False(t, d.Exist("s1/alpha/r1"))
	assert.True(t, d.Exist("s1/alpha/r1"))
	assert.False(t, d.Exist("s2/alpha/r1"))
	time.Sleep(250 * time.Millisecond)
	assert.False(t, d.Exist("s1/alpha/r1"))
}

func Test_WaitGroupWrapper(t *testing.T) {
	var w WaitGroupWrapper
	var n int32
	for i := 0; i < 10; i++ {
		w.Wrap(func() { atomic.AddInt32(&n, 1) })
	}
	w.Wait()
	assert.Equal(t, int32(10), n)
}

func Test_PostJson(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := ioutil.ReadAll(r.Body)
		if string(b) == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("rejected"))
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	require.NoError(t, PostJson(context.Background(), srv.Client(), srv.URL, []byte(`{}`)))
	err := PostJson(context.Background(), srv.Client(), srv.URL, []byte("bad"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func Test_Recover(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer Recover("Test_Recover")
		panic("boom")
	}()
	<-done
}

func Test_Caller(t *testing.T) {
	assert.Contains(t, Caller(1), "utils_test.go:")
}
