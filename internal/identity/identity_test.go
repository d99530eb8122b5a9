package identity

import (
	"strings"
	"testing"
)

func TestValidateUserID(t *testing.T) {
	valid := []string{"alice", "user-42", "A_b-C", strings.Repeat("x", 128)}
	for _, id := range valid {
		if err := ValidateUserID(id); err != nil {
			t.Errorf("ValidateUserID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "  ", "a/b", "../etc", "user name", "héllo", strings.Repeat("x", 129)}
	for _, id := range invalid {
		if err := ValidateUserID(id); err == nil {
			t.Errorf("ValidateUserID(%q) accepted", id)
		}
	}
}
