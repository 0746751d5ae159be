package validate

import "testing"

func TestStruct(t *testing.T) {
	type payload struct {
		ChannelID string `validate:"required,uuid"`
		Content   string `validate:"required,max=10"`
	}

	tests := []struct {
		name       string
		in         payload
		wantErrors int
		wantField  string
	}{
		{
			name:       "Valid",
			in:         payload{ChannelID: "7f9c24e5-0ca7-4bd2-9bc7-91d2a4f52a01", Content: "hi"},
			wantErrors: 0,
		},
		{
			name:       "MissingChannel",
			in:         payload{Content: "hi"},
			wantErrors: 1,
			wantField:  "ChannelID",
		},
		{
			name:       "NotAUUID",
			in:         payload{ChannelID: "nope", Content: "hi"},
			wantErrors: 1,
			wantField:  "ChannelID",
		},
		{
			name:       "TooLong",
			in:         payload{ChannelID: "7f9c24e5-0ca7-4bd2-9bc7-91d2a4f52a01", Content: "way too long content"},
			wantErrors: 1,
			wantField:  "Content",
		},
		{
			name:       "BothInvalid",
			in:         payload{},
			wantErrors: 2,
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Struct(tt.in)
			if len(errs) != tt.wantErrors {
				t.Fatalf("Got %d errors %v, want %d", len(errs), errs, tt.wantErrors)
			}
			if tt.wantField != "" && errs[0].Field != tt.wantField {
				t.Errorf("Got field %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestVar(t *testing.T) {
	v := New()
	if errs := v.Var("online", "oneof=online away offline"); len(errs) != 0 {
		t.Errorf("Got %v for a valid value", errs)
	}
	if errs := v.Var("invisible", "oneof=online away offline"); len(errs) != 1 {
		t.Errorf("Got %v, want one error", errs)
	}
}
