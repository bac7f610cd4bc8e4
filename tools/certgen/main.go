// Package main writes a development CA and a server certificate signed by
// it. Point the server's TLS_CERT/TLS_KEY at server.crt/server.key and the
// client's DEVTRACK_CA_FILE at ca.crt.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/devtrack/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma separated server names and IPs")
	flag.Parse()

	if err := run(os.Stdout, *dir, splitHosts(*hosts)); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// run reuses an existing ca.crt/ca.key in dir so clients that already
// trust it keep working, and always issues a fresh server certificate.
func run(out io.Writer, dir string, hosts []string) error {
	caCertPath := filepath.Join(dir, "ca.crt")
	caKeyPath := filepath.Join(dir, "ca.key")

	caCert, caKey, err := certgen.LoadCACredentials(caCertPath, caKeyPath)
	switch {
	case err == nil:
		fmt.Fprintf(out, "using existing CA %s\n", caCertPath)
	case errors.Is(err, os.ErrNotExist):
		ca, err := certgen.GenerateCA("DevTrack Development CA")
		if err != nil {
			return err
		}
		if err := ca.Write(dir, "ca"); err != nil {
			return err
		}
		if caCert, caKey, err = certgen.ParseCA(ca.CertPEM, ca.KeyPEM); err != nil {
			return err
		}
		fmt.Fprintf(out, "created CA %s\n", caCertPath)
	default:
		return err
	}

	srv, err := certgen.GenerateServerCertificate(hosts, caCert, caKey)
	if err != nil {
		return err
	}
	if err := srv.Write(dir, "server"); err != nil {
		return err
	}
	fmt.Fprintf(out, "created server certificate for %s in %s\n", strings.Join(hosts, ", "), dir)
	return nil
}
