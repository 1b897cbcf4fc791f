package ez

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	mdw "gin-todo-lists/internal/transport/http/middleware"
	resp "gin-todo-lists/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

type pageIn struct {
	Page int `form:"page" binding:"min=0"`
}

type echoIn struct {
	Text string `json:"text" binding:"required"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) resp.Resp {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("http status = %d, want 200", w.Code)
	}
	var out resp.Resp
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func newGroup(uid string) (*gin.Engine, EZ) {
	r := gin.New()
	g := r.Group("/", func(c *gin.Context) {
		if uid != "" {
			c.Set(mdw.KeyUserID, uid)
		}
	})
	return r, New(g)
}

func TestRegisterActionBinders(t *testing.T) {
	r, e := newGroup("")
	RegisterAction(e, Action[echoIn, string]{
		Method:  http.MethodPost,
		Path:    "/echo",
		Binder:  BindJSON,
		Handler: func(_ *gin.Context, in *echoIn) (string, error) { return in.Text, nil },
	})
	RegisterAction(e, Action[pageIn, int]{
		Method:  "get",
		Path:    "/page",
		Binder:  BindQuery,
		Handler: func(_ *gin.Context, in *pageIn) (int, error) { return in.Page, nil },
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"text":"hi"}`)))
	if got := decode(t, w); got.Code != resp.CodeOK || got.Data != "hi" {
		t.Errorf("echo = %+v", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{}`)))
	if got := decode(t, w); got.Code != resp.CodeBadRequest {
		t.Errorf("missing field code = %d, want %d", got.Code, resp.CodeBadRequest)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/page?page=3", nil))
	if got := decode(t, w); got.Code != resp.CodeOK || got.Data != float64(3) {
		t.Errorf("page = %+v", got)
	}
}

func TestRegisterActionAuth(t *testing.T) {
	for _, uid := range []string{"", "u1"} {
		r, e := newGroup(uid)
		RegisterAction(e, Action[struct{}, string]{
			Method: http.MethodGet,
			Path:   "/me",
			Binder: BindNone,
			Auth:   true,
			Handler: func(c *gin.Context, _ *struct{}) (string, error) {
				return mdw.UserID(c), nil
			},
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		got := decode(t, w)
		switch {
		case uid == "" && got.Code != resp.CodeUnauthorized:
			t.Errorf("anonymous code = %d, want %d", got.Code, resp.CodeUnauthorized)
		case uid != "" && got.Data != uid:
			t.Errorf("authed data = %v, want %s", got.Data, uid)
		}
	}
}

func TestRegisterActionErrors(t *testing.T) {
	cause := errors.New("disk on fire")
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
		recorded bool
	}{
		{"not found", NotFound("list not found"), resp.CodeNotFound, "list not found", false},
		{"internal keeps cause", Internal("save failed", cause), resp.CodeServerError, "save failed", true},
		{"plain error", cause, resp.CodeServerError, "disk on fire", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var recorded int
			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Next()
				recorded = len(c.Errors)
			})
			e := New(r.Group("/"))
			RegisterAction(e, Action[struct{}, any]{
				Method:  http.MethodDelete,
				Path:    "/x",
				Binder:  BindNone,
				Handler: func(*gin.Context, *struct{}) (any, error) { return nil, tc.err },
			})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/x", nil))
			got := decode(t, w)
			if got.Code != tc.wantCode || got.Msg != tc.wantMsg {
				t.Errorf("got (%d, %q), want (%d, %q)", got.Code, got.Msg, tc.wantCode, tc.wantMsg)
			}
			if (recorded > 0) != tc.recorded {
				t.Errorf("recorded errors = %d, want recorded=%v", recorded, tc.recorded)
			}
		})
	}
}

func TestAErrUnwrap(t *testing.T) {
	cause := errors.New("boom")
	if err := Internal("x", cause); !errors.Is(err, cause) {
		t.Error("Internal should wrap its cause")
	}
	if got := (&AErr{}).Error(); got != "action error" {
		t.Errorf("empty AErr = %q", got)
	}
}
