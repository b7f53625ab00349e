package com

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/snapbooth/snapbooth/pkg/api"
	"github.com/snapbooth/snapbooth/pkg/logger"
	"github.com/snapbooth/snapbooth/pkg/network/websocket"
)

// Client wraps one websocket connection into a typed packet pipe.
type Client struct {
	id       Uid
	conn     *websocket.WS
	onPacket func(packet api.In)
	log      *logger.Logger
}

type Connector struct {
	wu *websocket.Upgrader
}

type Option = func(c *Connector)

func WithOrigin(url string) Option { return func(c *Connector) { c.wu = websocket.NewUpgrader(url) } }

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	if c.wu == nil {
		c.wu = &websocket.DefaultUpgrader
	}
	return c
}

// NewServer upgrades the request into a server-side packet client.
func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*Client, error) {
	ws, err := co.wu.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn, err := websocket.NewServerWithConn(ws, log)
	if err != nil {
		return nil, err
	}
	id := NewUid()
	c := &Client{
		id:   id,
		conn: conn,
		log:  log.Extend(log.With().Str("cid", id.Short())),
	}
	c.conn.OnMessage = c.handleMessage
	return c, nil
}

func (c *Client) Id() Uid { return c.id }

func (c *Client) OnPacket(fn func(packet api.In)) { c.onPacket = fn }

// Listen starts the socket pumps; the channel signals disconnect.
func (c *Client) Listen() chan struct{} { return c.conn.Listen() }

func (c *Client) Close() { c.conn.Close() }

// Send marshals and writes one outbound frame.
func (c *Client) Send(t api.MT, user string, payload any) error {
	data, err := json.Marshal(api.Out{T: t, User: user, Payload: payload})
	if err != nil {
		return err
	}
	c.conn.Write(data)
	return nil
}

func (c *Client) handleMessage(message []byte, err error) {
	if err != nil {
		return
	}
	var in api.In
	if err := json.Unmarshal(message, &in); err != nil {
		c.log.Debug().Err(err).Msg("drop broken frame")
		return
	}
	if c.onPacket != nil {
		c.onPacket(in)
	}
}
