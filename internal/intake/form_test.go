package intake

import (
	"reflect"
	"testing"
)

func TestParseForm(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "both fields",
			body: "username=alice&message=hello",
			want: map[string]string{"username": "alice", "message": "hello"},
		},
		{
			name: "urlencoded values",
			body: "username=alice&message=hello+there%21",
			want: map[string]string{"username": "alice", "message": "hello there!"},
		},
		{
			name: "encoded equals in value",
			body: "username=alice&message=a%3Db",
			want: map[string]string{"username": "alice", "message": "a=b"},
		},
		{
			name: "empty value",
			body: "username=&message=hi",
			want: map[string]string{"username": "", "message": "hi"},
		},
		{
			name:    "empty body",
			body:    "",
			wantErr: true,
		},
		{
			name:    "pair without equals",
			body:    "username",
			wantErr: true,
		},
		{
			name:    "second pair without equals",
			body:    "username=alice&garbage",
			wantErr: true,
		},
		{
			name:    "raw equals in value",
			body:    "username=x=y",
			wantErr: true,
		},
		{
			name:    "double equals",
			body:    "username==",
			wantErr: true,
		},
		{
			name:    "empty pair between fields",
			body:    "username=alice&&message=hi",
			wantErr: true,
		},
		{
			name:    "trailing separator",
			body:    "username=alice&",
			wantErr: true,
		},
		{
			name:    "bad percent escape",
			body:    "username=%zz",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseForm(tt.body)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected an error for %q, got %v", tt.body, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tt.body, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parse %q = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}
