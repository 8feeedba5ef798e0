// Package flight adapts an Arrow Flight client into graphload.Channel and graphload.Getter.
package flight

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/opst/gdsremote/pkg/graphload"
	"github.com/opst/gdsremote/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// ErrNoReply is returned when an action stream ends without a reply.
var ErrNoReply = errors.New("flight: action has no reply")

type Config struct {
	// Address like "localhost:8491"
	Address string

	TLS bool

	// DisableServerVerification skips verifying the server certificate. Takes effect with TLS.
	DisableServerVerification bool

	// RootCerts is base64 encoded PEM of CA certificates to be trusted additionally.
	RootCerts string

	// Username and Password for basic token authentication. Empty Username skips authentication.
	Username string
	Password string
}

// Client is an Arrow Flight client towards the session.
type Client struct {
	client flight.Client
	auth   metadata.MD
	logger *log.Logger
}

var _ graphload.Channel = &Client{}
var _ graphload.Getter = &Client{}

// Dial connects to the Flight server and authenticates when credentials are given.
func Dial(ctx context.Context, conf Config, l *log.Logger) (*Client, error) {
	creds, err := transportCredentials(conf)
	if err != nil {
		return nil, err
	}

	c, err := flight.NewClientWithMiddleware(conf.Address, nil, nil, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("flight: cannot connect to %s: %w", conf.Address, err)
	}

	client := &Client{client: c, auth: metadata.MD{}, logger: logger.OrNull(l)}
	if conf.Username == "" {
		return client, nil
	}

	actx, err := c.AuthenticateBasicToken(ctx, conf.Username, conf.Password)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("flight: authentication failed on %s: %w", conf.Address, err)
	}
	if md, ok := metadata.FromOutgoingContext(actx); ok {
		client.auth = md.Copy()
	}
	return client, nil
}

func transportCredentials(conf Config) (credentials.TransportCredentials, error) {
	if !conf.TLS {
		return insecure.NewCredentials(), nil
	}

	tlsConf := &tls.Config{InsecureSkipVerify: conf.DisableServerVerification}
	if conf.RootCerts != "" {
		pem, err := base64.StdEncoding.DecodeString(conf.RootCerts)
		if err != nil {
			return nil, fmt.Errorf("flight: root certs are not base64: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("flight: no certificate found in root certs")
		}
		tlsConf.RootCAs = pool
	}
	return credentials.NewTLS(tlsConf), nil
}

func (c *Client) withAuth(ctx context.Context) context.Context {
	if len(c.auth) == 0 {
		return ctx
	}
	kv := []string{}
	for k, vs := range c.auth {
		for _, v := range vs {
			kv = append(kv, k, v)
		}
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// DoAction sends an action and returns the body of its first reply.
func (c *Client) DoAction(ctx context.Context, actionType string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithCancel(c.withAuth(ctx))
	defer cancel()

	stream, err := c.client.DoAction(ctx, &flight.Action{Type: actionType, Body: body})
	if err != nil {
		return nil, fmt.Errorf("flight: %s: %w", actionType, err)
	}
	res, err := stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrNoReply, actionType)
	} else if err != nil {
		return nil, fmt.Errorf("flight: %s: %w", actionType, err)
	}
	return res.Body, nil
}

// PutStream opens a DoPut stream with descriptor as its command.
func (c *Client) PutStream(ctx context.Context, descriptor []byte, schema *arrow.Schema) (graphload.StreamWriter, error) {
	stream, err := c.client.DoPut(c.withAuth(ctx))
	if err != nil {
		return nil, fmt.Errorf("flight: DoPut: %w", err)
	}
	w := flight.NewRecordWriter(stream, ipc.WithSchema(schema))
	w.SetFlightDescriptor(&flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: descriptor})
	return &putWriter{stream: stream, writer: w, logger: c.logger}, nil
}

type putWriter struct {
	stream flight.FlightService_DoPutClient
	writer *flight.Writer
	logger *log.Logger
}

func (p *putWriter) Write(rec arrow.Record) error {
	return p.writer.Write(rec)
}

// Close flushes the stream and waits for the server to finish reading.
func (p *putWriter) Close() error {
	werr := p.writer.Close()
	if err := p.stream.CloseSend(); err != nil && werr == nil {
		werr = err
	}
	for {
		res, err := p.stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			if werr == nil {
				werr = err
			}
			break
		}
		p.logger.Printf("flight: put result: %s", res.AppMetadata)
	}
	if werr != nil {
		return fmt.Errorf("flight: DoPut: %w", werr)
	}
	return nil
}

// GetStream opens a DoGet stream.
func (c *Client) GetStream(ctx context.Context, ticket []byte) (graphload.RecordReader, error) {
	stream, err := c.client.DoGet(c.withAuth(ctx), &flight.Ticket{Ticket: ticket})
	if err != nil {
		return nil, fmt.Errorf("flight: DoGet: %w", err)
	}
	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return nil, fmt.Errorf("flight: DoGet: %w", err)
	}
	return rdr, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
