package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xucongyong/slotwatch/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestForced_BypassesInner(t *testing.T) {
	for _, want := range []bool{true, false} {
		var calls atomic.Int32
		inner := Func(func(context.Context) (bool, error) {
			calls.Add(1)
			return !want, errors.New("must not be called")
		})

		p := Forced(inner, &want, zap.NewNop())
		for i := 0; i < 3; i++ {
			got, err := p.Check(context.Background())
			if err != nil {
				t.Fatalf("Check error: %v", err)
			}
			if got != want {
				t.Errorf("Check() = %v, want forced %v", got, want)
			}
		}
		if calls.Load() != 0 {
			t.Errorf("inner probe called %d times, want 0", calls.Load())
		}
	}
}

func TestForced_NilPassesThrough(t *testing.T) {
	inner := Func(func(context.Context) (bool, error) { return true, nil })
	p := Forced(inner, nil, zap.NewNop())

	got, err := p.Check(context.Background())
	if err != nil || !got {
		t.Errorf("Check() = (%v, %v), want (true, nil)", got, err)
	}
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return true, ctx.Err()
	})

	start := time.Now()
	got, err := WithTimeout(slow, 20*time.Millisecond).Check(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Check() error = %v, want ErrTimeout", err)
	}
	if got {
		t.Error("timed out probe must report unavailable")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}

	fast := Func(func(context.Context) (bool, error) { return true, nil })
	if got, err := WithTimeout(fast, time.Second).Check(context.Background()); err != nil || !got {
		t.Errorf("fast probe = (%v, %v), want (true, nil)", got, err)
	}
}

func TestWithTimeout_ZeroIsIdentity(t *testing.T) {
	inner := Func(func(context.Context) (bool, error) { return true, nil })
	if p := WithTimeout(inner, 0); p == nil {
		t.Fatal("nil probe")
	} else if _, ok := p.(*bounded); ok {
		t.Error("zero timeout should not wrap")
	}
}

func TestStub(t *testing.T) {
	got, err := Stub{Logger: zap.NewNop()}.Check(context.Background())
	if err != nil || got {
		t.Errorf("Stub.Check() = (%v, %v), want (false, nil)", got, err)
	}
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/open":
			_, _ = w.Write([]byte(`<div class="slot">2 slots available</div>`))
		case "/full":
			_, _ = w.Write([]byte(`<div>No appointments</div>`))
		default:
			http.Error(w, "down", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	match := regexp.MustCompile(`slots? available`)
	tests := []struct {
		name    string
		path    string
		match   *regexp.Regexp
		want    bool
		wantErr bool
	}{
		{"match found", "/open", match, true, false},
		{"no match", "/full", match, false, false},
		{"status only", "/full", nil, true, false},
		{"server error", "/broken", match, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &HTTP{URL: srv.URL + tt.path, Match: tt.match, Client: srv.Client()}
			got, err := p.Check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBrowser_RequiresSelector(t *testing.T) {
	_, err := (&Browser{URL: "about:blank"}).Check(context.Background())
	if err == nil {
		t.Error("expected error without selector")
	}
}

func TestFromSettings(t *testing.T) {
	yes := true

	tests := []struct {
		name   string
		modify func(*config.Settings)
		check  func(t *testing.T, p Probe)
	}{
		{
			name:   "stub without url",
			modify: func(s *config.Settings) { s.Probe.Timeout.Duration = 0 },
			check: func(t *testing.T, p Probe) {
				if _, ok := p.(Stub); !ok {
					t.Errorf("got %T, want Stub", p)
				}
			},
		},
		{
			name: "http with url",
			modify: func(s *config.Settings) {
				s.Probe.URL = "https://example.test"
				s.Probe.Timeout.Duration = 0
			},
			check: func(t *testing.T, p Probe) {
				if _, ok := p.(*HTTP); !ok {
					t.Errorf("got %T, want *HTTP", p)
				}
			},
		},
		{
			name: "browser with selector, bounded",
			modify: func(s *config.Settings) {
				s.Probe.URL = "https://example.test"
				s.Probe.Selector = ".slot"
			},
			check: func(t *testing.T, p Probe) {
				b, ok := p.(*bounded)
				if !ok {
					t.Fatalf("got %T, want *bounded", p)
				}
				if _, ok := b.inner.(*Browser); !ok {
					t.Errorf("inner = %T, want *Browser", b.inner)
				}
			},
		},
		{
			name:   "forced wins",
			modify: func(s *config.Settings) { s.ForceAvailable = &yes },
			check: func(t *testing.T, p Probe) {
				if _, ok := p.(*forced); !ok {
					t.Errorf("got %T, want *forced", p)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Default()
			tt.modify(s)
			p, err := FromSettings(s, zap.NewNop())
			if err != nil {
				t.Fatalf("FromSettings error: %v", err)
			}
			tt.check(t, p)
		})
	}
}

func TestFromSettings_BadMatch(t *testing.T) {
	s := config.Default()
	s.Probe.URL = "https://example.test"
	s.Probe.Match = "("
	if _, err := FromSettings(s, zap.NewNop()); err == nil {
		t.Error("expected regexp compile error")
	}
}
