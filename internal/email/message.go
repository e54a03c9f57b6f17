package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/supplai-io/supplai/internal/email/linesplitter"
	"github.com/supplai-io/supplai/internal/util"
)

// base64 bodies are wrapped at the line length RFC 2045 asks for
const base64LineLength = 76

type Attachment struct {
	Name        string
	CID         string
	ContentType string
	Content     io.Reader
	Inline      bool
}

type Message struct {
	From         string
	To           []string
	ReplyTo      string
	Subject      string
	PlainMessage string
	HtmlMessages string
	Attachments  []Attachment
	Date         time.Time
	// Rand makes the multipart boundaries deterministic when set
	Rand *rand.Rand
}

func (e *Message) Write(w io.Writer) (err error) {
	date := e.Date
	if date.IsZero() {
		date = time.Now()
	}
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\n", e.From, strings.Join(e.To, ", "))
	if e.ReplyTo != "" {
		headers += fmt.Sprintf("Reply-To: %s\r\n", e.ReplyTo)
	}
	headers += fmt.Sprintf("Subject: %s\r\nDate: %s\r\nMIME-Version: 1.0\r\n",
		mime.QEncoding.Encode("utf-8", e.Subject), date.Format(time.RFC1123Z))
	if _, err = io.WriteString(w, headers); err != nil {
		return err
	}

	mixed, err := NewWriter(w, "multipart/mixed", e.Rand)
	if err != nil {
		return err
	}
	defer util.CLose(&err, mixed.Close)

	if err = e.writeBody(mixed); err != nil {
		return err
	}

	for _, attachment := range e.Attachments {
		if attachment.Inline {
			continue
		}
		if err = attachment.write(mixed); err != nil {
			return err
		}
	}
	return nil
}

// writeBody writes the text and html alternatives, closing them before any attachment part starts.
func (e *Message) writeBody(mixed Writer) (err error) {
	alternatives, err := mixed.AddWriter("multipart/alternative")
	if err != nil {
		return err
	}
	defer util.CLose(&err, alternatives.Close)

	if e.PlainMessage != "" {
		if err = alternatives.AddQuotedPrintablePart("text/plain; charset=utf-8", []byte(e.PlainMessage)); err != nil {
			return err
		}
	}
	if e.HtmlMessages == "" {
		return nil
	}

	related, err := alternatives.AddWriter("multipart/related")
	if err != nil {
		return err
	}
	defer util.CLose(&err, related.Close)

	if err = related.AddQuotedPrintablePart("text/html; charset=utf-8", []byte(e.HtmlMessages)); err != nil {
		return err
	}
	for _, attachment := range e.Attachments {
		if !attachment.Inline {
			continue
		}
		if err = attachment.write(related); err != nil {
			return err
		}
	}
	return nil
}

func (attachment Attachment) write(writer Writer) error {
	if attachment.CID == "" {
		attachment.CID = attachment.Name
	}
	disposition := "attachment"
	if attachment.Inline {
		disposition = "inline"
	}
	headers := textproto.MIMEHeader{
		"Content-Disposition":       {mime.FormatMediaType(disposition, map[string]string{"filename": attachment.Name})},
		"Content-Id":                {fmt.Sprintf("<%s>", attachment.CID)},
		"Content-Transfer-Encoding": {"base64"},
	}
	if attachment.ContentType != "" {
		headers["Content-Type"] = []string{mime.FormatMediaType(attachment.ContentType, map[string]string{"name": attachment.Name})}
	}

	buf := bytes.NewBuffer(nil)
	encoder := base64.NewEncoder(base64.StdEncoding, linesplitter.New(buf, base64LineLength))
	if _, err := io.Copy(encoder, attachment.Content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return writer.AddPart(headers, buf)
}

// Writer writes nested multipart bodies
type Writer struct {
	multi *multipart.Writer
	rand  *rand.Rand
}

var (
	globalRandMu sync.Mutex
	globalRand   = rand.New(rand.NewSource(time.Now().UTC().UnixNano())) // #nosec G404
)

func NewWriter(w io.Writer, contentType string, random *rand.Rand) (Writer, error) {
	boundary := randomBoundary(random)
	if _, err := fmt.Fprintf(w, "Content-Type: %s; boundary=%s\r\n\r\n", contentType, boundary); err != nil {
		return Writer{}, err
	}
	writer := multipart.NewWriter(w)
	if err := writer.SetBoundary(boundary); err != nil {
		return Writer{}, err
	}
	return Writer{multi: writer, rand: random}, nil
}

func randomBoundary(random *rand.Rand) string {
	var buf [30]byte
	if random == nil {
		globalRandMu.Lock()
		defer globalRandMu.Unlock()
		random = globalRand
	}
	if _, err := io.ReadFull(random, buf[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", buf[:])
}

func (w Writer) AddWriter(contentType string) (Writer, error) {
	boundary := randomBoundary(w.rand)
	part, err := w.multi.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf(`%s; boundary="%s"`, contentType, boundary)},
	})
	if err != nil {
		return Writer{}, err
	}
	child := multipart.NewWriter(part)
	if err := child.SetBoundary(boundary); err != nil {
		return Writer{}, err
	}
	return Writer{multi: child, rand: w.rand}, nil
}

func (w Writer) AddQuotedPrintablePart(contentType string, content []byte) error {
	headers := textproto.MIMEHeader{
		"Content-Transfer-Encoding": {"quoted-printable"},
		"Content-Type":              {contentType},
	}
	buf := bytes.NewBuffer(nil)
	qp := quotedprintable.NewWriter(buf)
	if _, err := qp.Write(content); err != nil {
		return err
	}
	if err := qp.Close(); err != nil {
		return err
	}
	return w.AddPart(headers, buf)
}

func (w Writer) AddPart(headers textproto.MIMEHeader, reader io.Reader) error {
	part, err := w.multi.CreatePart(headers)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, reader)
	return err
}

func (w Writer) Close() error {
	return w.multi.Close()
}

func (w Writer) Boundary() string {
	return w.multi.Boundary()
}
