package metrics

import "testing"

func TestKeyStringSortsTags(t *testing.T) {
	k := NewKey("http_req_duration", map[string]string{"width": "800", "test_type": "resize", "format": "avif"})
	want := "http_req_duration{format:avif,test_type:resize,width:800}"
	if got := k.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if got := (Key{Name: "http_reqs"}).String(); got != "http_reqs" {
		t.Fatalf("bare String() = %q", got)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "http_req_failed", want: "http_req_failed"},
		{input: "http_req_duration{test_type:cdnCgi, width:400}", want: "http_req_duration{test_type:cdnCgi,width:400}"},
		{input: "counter_by_tag{width:1200,test_type:resize}", want: "counter_by_tag{test_type:resize,width:1200}"},
		{input: "checks{}", want: "checks"},
		{input: "{a:b}", wantErr: true},
		{input: "m{a}", wantErr: true},
		{input: "m{a:b", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			k, err := ParseKey(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKey(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey(%q) error = %v", tt.input, err)
			}
			if got := k.String(); got != tt.want {
				t.Fatalf("ParseKey(%q).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKeyMatches(t *testing.T) {
	k := NewKey("m", map[string]string{"test_type": "resize"})
	if !k.Matches(map[string]string{"test_type": "resize", "width": "800"}) {
		t.Error("expected subset match")
	}
	if k.Matches(map[string]string{"test_type": "source"}) {
		t.Error("unexpected match on different value")
	}
	if !(Key{Name: "m"}).Matches(nil) {
		t.Error("bare key should match any tags")
	}
}
