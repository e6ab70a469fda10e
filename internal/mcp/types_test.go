package mcp

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	c1 := &ServerConfig{Command: "python", Args: []string{"server.py"}, Env: map[string]string{"B": "2", "A": "1"}}
	c2 := &ServerConfig{Command: "python", Args: []string{"server.py"}, Env: map[string]string{"A": "1", "B": "2"}}
	if c1.Fingerprint() != c2.Fingerprint() {
		t.Errorf("fingerprints differ for equivalent configs with differently-ordered env: %q vs %q", c1.Fingerprint(), c2.Fingerprint())
	}
}

func TestFingerprintDistinguishesArgs(t *testing.T) {
	c1 := &ServerConfig{Command: "python", Args: []string{"a.py"}}
	c2 := &ServerConfig{Command: "python", Args: []string{"b.py"}}
	if c1.Fingerprint() == c2.Fingerprint() {
		t.Error("expected different fingerprints for different args")
	}
}

func TestValidateRejectsEmptyCommand(t *testing.T) {
	c := &ServerConfig{Command: ""}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestValidateRejectsEmptyArg(t *testing.T) {
	c := &ServerConfig{Command: "python", Args: []string{""}}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty arg")
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	c := &ServerConfig{Command: "python", Args: []string{"server.py", "--flag"}}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
