/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package monitor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/matcornic/hermes/v2"
	"github.com/nats-io/nats.go"
	simple "github.com/xhit/go-simple-mail"
)

func init() {
	RegisterRemedy("ban", banRemedy)
	RegisterRemedy("delay", delayRemedy)
	RegisterRemedy("log", logRemedy)
	RegisterRemedy("cmd", cmdRemedy)
	RegisterRemedy("email", emailRemedy)
	RegisterRemedy("http", httpRemedy)
	RegisterRemedy("bus", busRemedy)
}

func argDuration(args map[string]string, key string, def time.Duration) time.Duration {
	v, ok := args[key]
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// banRemedy sets address.BanUntil to the later of its current value and
// now+PERIOD, grounded on monitor.c's banRemedy ("address->banUntil =
// max(address->banUntil, now + period)").
func banRemedy(_ context.Context, _ *Tracker, address *Address, args map[string]string, _ Message) error {
	if address == nil {
		return fmt.Errorf("monitor: ban remedy requires a per-address trigger")
	}
	period := argDuration(args, "PERIOD", time.Minute)
	until := time.Now().Add(period)

	address.mu.Lock()
	if until.After(address.BanUntil) {
		address.BanUntil = until
	}
	address.mu.Unlock()
	return nil
}

// delayRemedy sets address.DelayUntil/Delay to the later of the current
// values and now+PERIOD/DELAY, grounded on monitor.c's delayRemedy.
func delayRemedy(_ context.Context, _ *Tracker, address *Address, args map[string]string, _ Message) error {
	if address == nil {
		return fmt.Errorf("monitor: delay remedy requires a per-address trigger")
	}
	period := argDuration(args, "PERIOD", time.Minute)
	delay := argDuration(args, "DELAY", 100*time.Millisecond)
	until := time.Now().Add(period)

	address.mu.Lock()
	if until.After(address.DelayUntil) {
		address.DelayUntil = until
	}
	if delay > address.Delay {
		address.Delay = delay
	}
	address.mu.Unlock()
	return nil
}

// Logger is the minimal sink logRemedy writes to, satisfied by
// nabbar-golib/logger's Logger (and by *log.Logger via an adapter) without
// this package importing that logger concretely.
type Logger interface {
	Errorf(format string, args ...interface{})
}

var remedyLogger Logger

// SetLogger installs the sink logRemedy and internal diagnostics write to.
func SetLogger(l Logger) {
	remedyLogger = l
}

// logRemedy emits MSG through the installed Logger, grounded on monitor.c's
// logRemedy ("mprLog(monitor->http, 0, \"%s\", msg)").
func logRemedy(_ context.Context, _ *Tracker, _ *Address, args map[string]string, msg Message) error {
	if remedyLogger == nil {
		return nil
	}
	m := args["MSG"]
	if m == "" {
		m = msg["MSG"]
	}
	remedyLogger.Errorf("monitor: %s", m)
	return nil
}

// cmdRemedy runs args["CMD"], grounded on monitor.c's cmdRemedy, which
// supports a "data|command" stdin-pipe syntax and a trailing "&" to detach
// the command. Go's os/exec needs no shell to support either: a pipe
// argument feeds Stdin, and detachment is just not calling Wait.
func cmdRemedy(ctx context.Context, _ *Tracker, _ *Address, args map[string]string, _ Message) error {
	line := args["CMD"]
	if line == "" {
		return fmt.Errorf("monitor: cmd remedy requires CMD")
	}

	background := strings.HasSuffix(strings.TrimSpace(line), "&")
	line = strings.TrimSuffix(strings.TrimSpace(line), "&")

	var stdin string
	if data, command, ok := strings.Cut(line, "|"); ok {
		stdin = data
		line = command
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fmt.Errorf("monitor: cmd remedy has an empty command")
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	if background {
		return cmd.Start()
	}
	return cmd.Run()
}

// emailRemedy renders MSG through a hermes template and sends it via SMTP.
// monitor.c's emailRemedy is actually a thin wrapper that pipes the message
// through the system "sendmail" binary (delegating to cmdRemedy); this is a
// deliberate enrichment to a genuine SMTP client, recorded as an Open
// Question decision, grounded on nabbar-golib/mail's hermes render +
// go-simple-mail send pipeline.
func emailRemedy(_ context.Context, _ *Tracker, _ *Address, args map[string]string, msg Message) error {
	host := args["SMTP_HOST"]
	to := args["TO"]
	from := args["FROM"]
	if host == "" || to == "" || from == "" {
		return fmt.Errorf("monitor: email remedy requires SMTP_HOST, FROM and TO")
	}

	h := hermes.Hermes{Product: hermes.Product{Name: "Monitor", Link: "#"}}
	body := hermes.Email{
		Body: hermes.Body{
			Name: "Threshold alert: " + msg["COUNTER"],
			Intros: []string{
				msg["MSG"],
			},
			Dictionary: []hermes.Entry{
				{Key: "Counter", Value: msg["COUNTER"]},
				{Key: "IP", Value: msg["IP"]},
				{Key: "Value", Value: msg["VALUE"]},
				{Key: "Limit", Value: msg["LIMIT"]},
				{Key: "Date", Value: msg["DATE"]},
			},
		},
	}
	html, err := h.GenerateHTML(body)
	if err != nil {
		return fmt.Errorf("monitor: rendering email body: %w", err)
	}

	port := 587
	if p, err := strconv.Atoi(args["SMTP_PORT"]); err == nil && p > 0 {
		port = p
	}

	server := simple.NewSMTPClient()
	server.Host = host
	server.Port = port
	server.Username = args["SMTP_USER"]
	server.Password = args["SMTP_PASS"]

	client, err := server.Connect()
	if err != nil {
		return fmt.Errorf("monitor: connecting to smtp server: %w", err)
	}

	m := simple.NewMSG()
	m.SetFrom(from)
	m.AddTo(to)
	m.SetSubject("Threshold alert: " + msg["COUNTER"])
	m.SetBody(simple.TextHTML, html)
	if m.Error != nil {
		return fmt.Errorf("monitor: building email message: %w", m.Error)
	}
	return m.Send(client)
}

var retryableClient = retryablehttp.NewClient()

// httpRemedy POSTs MSG to a configured URI and requires a 200 response,
// grounded on monitor.c's httpRemedy ("httpRequest(http, \"POST\", uri,
// ...); if (httpGetStatus(http) != 200) ..."), using go-retryablehttp the
// way artifact/gitlab uses it for outbound calls.
func httpRemedy(ctx context.Context, _ *Tracker, _ *Address, args map[string]string, msg Message) error {
	uri := args["URI"]
	if uri == "" {
		return fmt.Errorf("monitor: http remedy requires URI")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewBufferString(msg["MSG"]))
	if err != nil {
		return fmt.Errorf("monitor: building http remedy request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	rsp, err := retryableClient.Do(req)
	if err != nil {
		return fmt.Errorf("monitor: sending http remedy request: %w", err)
	}
	defer func() { _ = rsp.Body.Close() }()

	if rsp.StatusCode != http.StatusOK {
		return fmt.Errorf("monitor: http remedy got status %d, want 200", rsp.StatusCode)
	}
	return nil
}

// busRemedy publishes MSG to a NATS subject, a supplemental remedy with no
// equivalent in monitor.c (the original only ever reaches a local process
// or SMTP relay): a "fan this alert out to the bus" defense registered
// alongside the six remedies ported from the original. It is the only
// user of nats.go in this module.
func busRemedy(_ context.Context, _ *Tracker, _ *Address, args map[string]string, msg Message) error {
	url := args["NATS_URL"]
	subject := args["SUBJECT"]
	if url == "" || subject == "" {
		return fmt.Errorf("monitor: bus remedy requires NATS_URL and SUBJECT")
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return fmt.Errorf("monitor: connecting to nats: %w", err)
	}
	defer nc.Close()

	if err = nc.Publish(subject, []byte(msg["MSG"])); err != nil {
		return fmt.Errorf("monitor: publishing to nats: %w", err)
	}
	return nc.Flush()
}
