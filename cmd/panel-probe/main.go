// panel-probe — 通过面板 WebSocket 发送请求并打印结果, 用于手动联调。
//
//	panel-probe --url ws://127.0.0.1:5180/ws --action inc --event '{"listEvent":{"currentSelectItemIndex":2}}'
//	panel-probe --follow     # 持续打印广播视图
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
)

// request 与面板 ws 协议一致。
type request struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// message 服务端消息 (result 或广播)。
type message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type probeOptions struct {
	actions []string
	label   string
	index   int
	events  []string
	connect bool
	state   bool
}

// buildRequests 按 connect → actions → events → state 的顺序生成请求。
func buildRequests(o probeOptions) ([]request, error) {
	var reqs []request
	next := func(typ string, payload json.RawMessage) {
		reqs = append(reqs, request{ID: strconv.Itoa(len(reqs) + 1), Type: typ, Payload: payload})
	}
	if o.connect {
		next("connect", nil)
	}
	for _, a := range o.actions {
		body := map[string]any{"action": a}
		if o.label != "" {
			body["label"] = o.label
		}
		if o.index >= 0 {
			body["index"] = o.index
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		next("action", data)
	}
	for _, e := range o.events {
		if !json.Valid([]byte(e)) {
			return nil, pkgerr.Wrapf(pkgerr.ErrInvalidInput, "buildRequests", "event is not JSON: %s", e)
		}
		next("event", json.RawMessage(e))
	}
	if o.state || len(reqs) == 0 {
		next("state", nil)
	}
	return reqs, nil
}

// exchange 逐条发送请求并等待对应 result; 期间收到的广播写入 out。
func exchange(ctx context.Context, conn *websocket.Conn, reqs []request, out io.Writer) (failed int, err error) {
	for _, req := range reqs {
		data, _ := json.Marshal(req)
		fmt.Fprintf(out, ">>> %s\n", data)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return failed, pkgerr.Wrap(err, "exchange", "write")
		}
		for {
			if deadline, ok := ctx.Deadline(); ok {
				_ = conn.SetReadDeadline(deadline)
			}
			var msg message
			if err := conn.ReadJSON(&msg); err != nil {
				return failed, pkgerr.Wrap(err, "exchange", "read")
			}
			if msg.Type != "result" || msg.ID != req.ID {
				fmt.Fprintf(out, "<<< [%s] %s\n", msg.Type, msg.Data)
				continue
			}
			if msg.Success == nil || !*msg.Success {
				failed++
				if msg.Error != nil {
					fmt.Fprintf(out, "<<< #%s failed: %s (%s)\n", msg.ID, msg.Error.Message, msg.Error.Code)
				} else {
					fmt.Fprintf(out, "<<< #%s failed\n", msg.ID)
				}
				break
			}
			fmt.Fprintf(out, "<<< #%s %s\n", msg.ID, msg.Data)
			break
		}
	}
	return failed, nil
}

// follow 打印广播直到 ctx 取消或连接断开。
func follow(ctx context.Context, conn *websocket.Conn, out io.Writer) error {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	_ = conn.SetReadDeadline(time.Time{})
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Fprintf(out, "<<< [%s] %s\n", msg.Type, msg.Data)
	}
}

func run() error {
	fs := pflag.NewFlagSet("panel-probe", pflag.ContinueOnError)
	url := fs.String("url", "ws://127.0.0.1:5180/ws", "panel WebSocket URL")
	var o probeOptions
	fs.StringSliceVar(&o.actions, "action", nil, "local action (inc, dec, add, remove, select, sync, reset); repeatable")
	fs.StringVar(&o.label, "label", "", "label for add/remove")
	fs.IntVar(&o.index, "index", -1, "index for select")
	fs.StringArrayVar(&o.events, "event", nil, "raw bridge event JSON to inject; repeatable")
	fs.BoolVar(&o.connect, "connect", false, "ask the session to connect to the bridge first")
	fs.BoolVar(&o.state, "state", false, "print the panel view after the other requests")
	followFlag := fs.Bool("follow", false, "keep printing broadcast views until interrupted")
	timeout := fs.Duration("timeout", 10*time.Second, "overall request timeout")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	reqs, err := buildRequests(o)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, *url, nil)
	if err != nil {
		return pkgerr.Wrapf(err, "panel-probe", "dial %s", *url)
	}
	defer conn.Close()

	failed, err := exchange(dialCtx, conn, reqs, os.Stdout)
	if err != nil {
		return err
	}
	if *followFlag {
		if err := follow(ctx, conn, os.Stdout); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d request(s) failed", failed)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "panel-probe:", err)
		os.Exit(1)
	}
}
