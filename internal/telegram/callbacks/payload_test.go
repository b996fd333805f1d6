package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name        string
		cb          *tele.Callback
		wantKey     string
		wantPayload string
	}{
		{"nil", nil, "", ""},
		{"unique set", &tele.Callback{Unique: "num_req", Data: "42"}, "num_req", "42"},
		{"raw with payload", &tele.Callback{Data: "\fnum_page|3|7"}, "num_page", "3|7"},
		{"raw without payload", &tele.Callback{Data: "\fclose"}, "close", ""},
		{"no prefix", &tele.Callback{Data: "country|5"}, "country", "5"},
	}
	for _, tc := range cases {
		key, payload := Parse(tc.cb)
		if key != tc.wantKey || payload != tc.wantPayload {
			t.Errorf("%s: Parse = (%q, %q), want (%q, %q)", tc.name, key, payload, tc.wantKey, tc.wantPayload)
		}
	}
}
