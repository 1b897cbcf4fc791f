package response

import (
	"encoding/json"
	"testing"
)

func TestEnvelope(t *testing.T) {
	cases := []struct {
		name string
		r    Resp
		want string
	}{
		{"ok with data", OK([]int{1}), `{"code":0,"msg":"OK","data":[1]}`},
		{"ok nil data", OK(nil), `{"code":0,"msg":"OK","data":{}}`},
		{"default message", Error(CodeBusy, ""), `{"code":503,"msg":"Service Unavailable","data":{}}`},
		{"custom message", Error(CodeBadRequest, "name is required"), `{"code":400,"msg":"name is required","data":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.r)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tc.want {
				t.Errorf("got %s, want %s", b, tc.want)
			}
		})
	}
}
