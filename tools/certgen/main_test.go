package main

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSplitHosts(t *testing.T) {
	got := splitHosts(" localhost, ,127.0.0.1,devtrack.local ")
	want := []string{"localhost", "127.0.0.1", "devtrack.local"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitHosts = %v; want %v", got, want)
	}
}

func readCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatalf("no PEM in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return cert
}

func TestRun_CreatesAndReusesCA(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")

	var out bytes.Buffer
	if err := run(&out, dir, []string{"localhost"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !strings.Contains(out.String(), "created CA") {
		t.Errorf("expected CA creation, got %q", out.String())
	}
	for _, name := range []string{"ca.crt", "ca.key", "server.crt", "server.key"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	ca := readCert(t, filepath.Join(dir, "ca.crt"))

	out.Reset()
	if err := run(&out, dir, []string{"localhost", "10.0.0.5"}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(out.String(), "using existing CA") {
		t.Errorf("expected CA reuse, got %q", out.String())
	}
	if again := readCert(t, filepath.Join(dir, "ca.crt")); !again.Equal(ca) {
		t.Error("CA was regenerated")
	}

	srv := readCert(t, filepath.Join(dir, "server.crt"))
	pool := x509.NewCertPool()
	pool.AddCert(ca)
	if _, err := srv.Verify(x509.VerifyOptions{DNSName: "10.0.0.5", Roots: pool}); err != nil {
		t.Errorf("server cert does not verify: %v", err)
	}
}

func TestRun_CorruptCA(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ca.crt"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ca.key"), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := run(&bytes.Buffer{}, dir, []string{"localhost"}); err == nil {
		t.Fatal("expected error for corrupt CA")
	}
}
