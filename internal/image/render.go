package image

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Render writes the Dockerfile for s to w.
func (s Spec) Render(w io.Writer) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid image spec: %w", err)
	}

	var buf bytes.Buffer

	buf.WriteString("# syntax=docker/dockerfile:1\n")
	buf.WriteString("# Generated by cookship. Regenerate with: cookship dockerfile\n\n")

	s.writeFetcherStage(&buf)
	buf.WriteString("\n")
	s.writeRuntimeStage(&buf)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write dockerfile: %w", err)
	}
	return nil
}

// String renders the Dockerfile, returning "" for an invalid spec.
func (s Spec) String() string {
	var buf bytes.Buffer
	if err := s.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// writeFetcherStage runs on the target platform so the self check executes
// the artifact natively (or under emulation when cross-building).
func (s Spec) writeFetcherStage(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "FROM %s AS %s\n", s.BuilderImage, FetcherStage)
	fmt.Fprintf(buf, "ARG %s=latest\n", ArgVersion)
	buf.WriteString("ARG TARGETARCH\n")
	buf.WriteString("WORKDIR /src\n")
	buf.WriteString("COPY go.mod go.sum* ./\n")
	buf.WriteString("RUN go mod download\n")
	buf.WriteString("COPY . .\n")
	buf.WriteString("RUN CGO_ENABLED=0 go build -o /usr/local/bin/cookship ./cmd/cookship\n")
	fmt.Fprintf(buf, "RUN cookship fetch --version \"$%s\" --arch \"$TARGETARCH\" --out /out/%s\n",
		ArgVersion, s.BinaryName)
}

func (s Spec) writeRuntimeStage(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "FROM %s\n", s.BaseImage)
	fmt.Fprintf(buf, "ARG %s=latest\n", ArgVersion)
	fmt.Fprintf(buf, "ARG %s=unknown\n", ArgRevision)
	fmt.Fprintf(buf, "ARG %s\n\n", ArgCreated)

	s.writeLabels(buf)

	if len(s.Packages) > 0 {
		fmt.Fprintf(buf, "RUN apk add --no-cache %s\n", strings.Join(s.Packages, " "))
	}

	fmt.Fprintf(buf, "RUN addgroup -g %d %s && adduser -D -u %d -G %s %s\n",
		s.GID, s.Group, s.UID, s.Group, s.User)
	fmt.Fprintf(buf, "WORKDIR %s\n", s.Workdir)
	fmt.Fprintf(buf, "RUN chown %d:%d %s\n", s.UID, s.GID, s.Workdir)
	fmt.Fprintf(buf, "COPY --from=%s --chown=%d:%d /out/%s %s\n\n",
		FetcherStage, s.UID, s.GID, s.BinaryName, s.BinaryPath())

	fmt.Fprintf(buf, "USER %d:%d\n", s.UID, s.GID)
	fmt.Fprintf(buf, "EXPOSE %d\n", s.Port)

	hc := s.HealthCheck
	fmt.Fprintf(buf, "HEALTHCHECK --interval=%s --timeout=%s --start-period=%s --retries=%d \\\n",
		hc.Interval, hc.Timeout, hc.StartPeriod, hc.Retries)
	fmt.Fprintf(buf, "  CMD curl -fsS %s || exit 1\n", s.HealthURL())

	fmt.Fprintf(buf, "CMD %s\n", execForm(s.Command()))
}

// writeLabels emits one LABEL instruction with static labels first, then
// the build-argument driven ones.
func (s Spec) writeLabels(buf *bytes.Buffer) {
	labels := append([]Label{}, s.Labels...)
	labels = append(labels,
		Label{Key: "org.opencontainers.image.version", Value: "${" + ArgVersion + "}"},
		Label{Key: "org.opencontainers.image.revision", Value: "${" + ArgRevision + "}"},
		Label{Key: "org.opencontainers.image.created", Value: "${" + ArgCreated + "}"},
	)

	buf.WriteString("LABEL ")
	for i, l := range labels {
		if i > 0 {
			buf.WriteString(" \\\n      ")
		}
		fmt.Fprintf(buf, "%s=%s", l.Key, strconv.Quote(l.Value))
	}
	buf.WriteString("\n\n")
}

// execForm renders args as a JSON-style exec array.
func execForm(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = strconv.Quote(a)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
