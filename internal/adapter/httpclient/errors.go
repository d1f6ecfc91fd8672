package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
)

// Transient error kinds produced by the fetcher
const (
	KindTimeout           = "Timeout"
	KindDNS               = "DNSError"
	KindConnectionRefused = "ConnectionRefused"
	KindConnectionReset   = "ConnectionReset"
	KindBrokenPipe        = "BrokenPipe"
	KindTLS               = "TLSError"
	KindUnexpectedEOF     = "UnexpectedEOF"
	KindNetwork           = "NetworkError"
)

// classify maps a transport or body error to a transient error. Cancellation
// of ctx wins over everything else so an interrupt is never retried.
// Transport timeouts also match context.DeadlineExceeded, so only the caller's
// ctx decides whether an error is a cancellation.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return domain.NewTransientError(kindOf(err), err)
}

func kindOf(err error) string {
	var (
		dnsErr      *net.DNSError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		certErr     x509.CertificateInvalidError
		netErr      net.Error
	)

	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return KindUnexpectedEOF
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED):
		return KindConnectionReset
	case errors.Is(err, syscall.EPIPE):
		return KindBrokenPipe
	case errors.As(err, &dnsErr):
		return KindDNS
	case errors.As(err, &recordErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostErr),
		errors.As(err, &certErr):
		return KindTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	default:
		return KindNetwork
	}
}
