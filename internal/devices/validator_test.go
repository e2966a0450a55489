package devices

import "testing"

func TestValidateDocument(t *testing.T) {
	validator, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() failed: %v", err)
	}

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"minimal", `{"switches":[{"name":"BATTERY","command":"battery"}],"magnetos":"m","starter":"s"}`, false},
		{"with gear", `{"plane":"p","switches":[{"name":"TAXI","command":"t"}],"magnetos":"m","starter":"s","gear_primer":"g"}`, false},
		{"no switches", `{"switches":[],"magnetos":"m","starter":"s"}`, true},
		{"empty command", `{"switches":[{"name":"BATTERY","command":""}],"magnetos":"m","starter":"s"}`, true},
		{"newline in command", `{"switches":[{"name":"BATTERY","command":"a\nb"}],"magnetos":"m","starter":"s"}`, true},
		{"extra key", `{"switches":[{"name":"BATTERY","command":"b"}],"magnetos":"m","starter":"s","radio":"r"}`, true},
		{"not json", `<plane/>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateDocument([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocument() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefinition(t *testing.T) {
	validator, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() failed: %v", err)
	}

	if err := validator.ValidateDefinition(fullDefinition()); err != nil {
		t.Errorf("Expected full definition to validate, got %v", err)
	}

	def := fullDefinition()
	def.Starter = ""
	if err := validator.ValidateDefinition(def); err == nil {
		t.Error("Expected missing starter to fail validation")
	}
}
