// Package rtsp pulls a camera's H.264/H.265 stream and hands out its RTP
// packets.
package rtsp

import (
	"context"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/cenkalti/backoff"
	"github.com/pion/rtp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Client handles RTSP connection and RTP streaming using gortsplib
type Client struct {
	url     string
	rtpChan chan []byte
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	client  *gortsplib.Client
	stopped bool
}

// NewClient creates a new RTSP client
func NewClient(rtspURL string, log *zap.Logger) (*Client, error) {
	// Validate URL by parsing it
	if _, err := base.ParseURL(rtspURL); err != nil {
		return nil, errors.Wrapf(err, "invalid RTSP URL %q", rtspURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:     rtspURL,
		rtpChan: make(chan []byte, 500),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Connect establishes the RTSP connection and starts streaming
func (c *Client) Connect() error {
	return c.connect()
}

// videoMedia picks the first H.264 or H.265 media, falling back to the first
// video media of any format
func videoMedia(desc *description.Session) *description.Media {
	for _, media := range desc.Medias {
		for _, forma := range media.Formats {
			switch forma.(type) {
			case *format.H264, *format.H265:
				return media
			}
		}
	}
	for _, media := range desc.Medias {
		if media.Type == description.MediaTypeVideo && len(media.Formats) > 0 {
			return media
		}
	}
	return nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return errors.New("rtsp: client closed")
	}

	client := &gortsplib.Client{
		// Use TCP transport (interleaved)
		Transport: func() *gortsplib.Transport {
			t := gortsplib.TransportTCP
			return &t
		}(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		OnDecodeError: func(err error) {
			c.log.Debug("decode error", zap.Error(err))
		},
	}

	u, err := base.ParseURL(c.url)
	if err != nil {
		return err
	}

	if err := client.Start(u.Scheme, u.Host); err != nil {
		return errors.Wrap(err, "rtsp: failed to connect")
	}

	desc, _, err := client.Describe(u)
	if err != nil {
		client.Close()
		return errors.Wrap(err, "rtsp: describe failed")
	}

	media := videoMedia(desc)
	if media == nil {
		client.Close()
		return errors.New("rtsp: stream has no video media")
	}

	if _, err := client.Setup(desc.BaseURL, media, 0, 0); err != nil {
		client.Close()
		return errors.Wrap(err, "rtsp: setup failed")
	}

	client.OnPacketRTPAny(func(media *description.Media, forma format.Format, pkt *rtp.Packet) {
		buf, err := pkt.Marshal()
		if err != nil {
			return
		}

		select {
		case c.rtpChan <- buf:
		case <-c.ctx.Done():
		default:
			// Drop packet if channel full
		}
	})

	if _, err := client.Play(nil); err != nil {
		client.Close()
		return errors.Wrap(err, "rtsp: play failed")
	}

	c.client = client
	c.log.Info("connected and playing")

	go c.monitorConnection(client)

	return nil
}

// monitorConnection waits for client to drop and reconnects with
// exponential backoff until Close
func (c *Client) monitorConnection(client *gortsplib.Client) {
	err := client.Wait()
	if c.ctx.Err() != nil {
		return
	}
	c.log.Warn("connection lost", zap.Error(err))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry until closed

	err = backoff.RetryNotify(c.connect, backoff.WithContext(b, c.ctx), func(err error, delay time.Duration) {
		c.log.Warn("reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
	})
	if err != nil {
		return
	}
	c.log.Info("reconnected")
}

// RTPChannel returns the channel for receiving RTP packets. It is never
// closed; stop reading after Close.
func (c *Client) RTPChannel() <-chan []byte {
	return c.rtpChan
}

// Done is closed once Close has been called
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the RTSP connection
func (c *Client) Close() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	client := c.client
	c.mu.Unlock()

	c.cancel()

	if client != nil {
		client.Close()
	}
	return nil
}
