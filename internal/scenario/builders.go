package scenario

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/pixelfire/internal/config"
	"github.com/torosent/pixelfire/internal/fixture"
)

// Formats are the modern encodings negotiated through the Accept header.
var Formats = []string{"avif", "webp"}

// DefaultWidth is used when a resize scenario carries no WIDTH.
const DefaultWidth = "800"

var classWidths = map[fixture.Class]string{
	fixture.Large:  "1200",
	fixture.Medium: "800",
	fixture.Small:  "400",
}

// WidthFor returns the resize width used for a size class variant.
func WidthFor(class fixture.Class) string {
	return classWidths[class]
}

// slowCeiling is the fixed secondary latency check every family carries.
const slowCeiling = 800 * time.Millisecond

// Target is where requests are sent.
type Target struct {
	BaseURL    string
	PathPrefix string
}

func (t Target) imageURL(path string) string {
	return t.BaseURL + t.PathPrefix + path
}

// NewBuilder returns the Builder for family.
func NewBuilder(family config.Family, target Target, provider *fixture.Provider, dist fixture.Distribution, responseTime time.Duration) (Builder, error) {
	if provider == nil {
		return nil, fmt.Errorf("%s: fixture provider is required", family)
	}
	base := familyBuilder{target: target, provider: provider, dist: dist, responseTime: responseTime}
	switch family {
	case config.FamilySource:
		return sourceBuilder{base}, nil
	case config.FamilyFormat:
		return formatBuilder{base}, nil
	case config.FamilyResize:
		return resizeBuilder{base}, nil
	case config.FamilyResizeFormat:
		return resizeFormatBuilder{base}, nil
	case config.FamilyCdnCgi:
		return cdnCgiBuilder{base}, nil
	default:
		return nil, fmt.Errorf("unknown scenario family %q", family)
	}
}

type familyBuilder struct {
	target       Target
	provider     *fixture.Provider
	dist         fixture.Distribution
	responseTime time.Duration
}

func (b familyBuilder) randomFormat() string {
	return Formats[b.provider.Intn(len(Formats))]
}

func (b familyBuilder) responseMs() string {
	return strconv.FormatInt(b.responseTime.Milliseconds(), 10)
}

// sourceBuilder requests the original image of the class named by DISTRIBUTION.
type sourceBuilder struct{ familyBuilder }

func (b sourceBuilder) class(env Env) (fixture.Class, error) {
	return fixture.ParseClass(env.Get(EnvDistribution, string(fixture.Medium)))
}

func (b sourceBuilder) Build(env Env) (Request, error) {
	class, err := b.class(env)
	if err != nil {
		return Request{}, err
	}
	path, err := b.provider.RandomPath(class)
	if err != nil {
		return Request{}, err
	}
	name := string(config.FamilySource)
	suffix := "with " + string(class)
	return Request{
		Method: http.MethodGet,
		URL:    b.target.imageURL(path),
		Header: http.Header{},
		Tags:   map[string]string{TagTestType: name, TagDistribution: string(class)},
		Checks: []Check{
			statusOK(name),
			contentTypeImage(name),
			fasterThan(fmt.Sprintf("%s: response time < %sms %s", name, b.responseMs(), suffix), b.responseTime),
			fasterThan(fmt.Sprintf("%s: response time < 800ms %s", name, suffix), slowCeiling),
		},
	}, nil
}

func (b sourceBuilder) RequiredClasses(env Env) []fixture.Class {
	class, err := b.class(env)
	if err != nil {
		return nil
	}
	return []fixture.Class{class}
}

// formatBuilder negotiates FORMAT on a medium image.
type formatBuilder struct{ familyBuilder }

func (b formatBuilder) Build(env Env) (Request, error) {
	format := env.Get(EnvFormat, "webp")
	path, err := b.provider.RandomPath(fixture.Medium)
	if err != nil {
		return Request{}, err
	}
	name := string(config.FamilyFormat)
	return Request{
		Method: http.MethodGet,
		URL:    b.target.imageURL(path),
		Header: acceptHeader(format),
		Tags:   map[string]string{TagTestType: name, TagFormat: format},
		Checks: []Check{
			statusOK(name),
			contentTypeImage(name),
			fasterThan(fmt.Sprintf("%s: response time for %s < %sms", name, format, b.responseMs()), b.responseTime),
			fasterThan(fmt.Sprintf("%s: response time for %s < 800ms", name, format), slowCeiling),
			{Name: name + ": correct format returned", Fn: modernFormat},
		},
	}, nil
}

func (b formatBuilder) RequiredClasses(Env) []fixture.Class {
	return []fixture.Class{fixture.Medium}
}

// resizeBuilder requests /<width><path> with the path drawn by distribution.
type resizeBuilder struct{ familyBuilder }

func (b resizeBuilder) Build(env Env) (Request, error) {
	width := env.Get(EnvWidth, DefaultWidth)
	path, err := b.provider.RandomPathByDistribution(b.dist)
	if err != nil {
		return Request{}, err
	}
	name := string(config.FamilyResize)
	suffix := fmt.Sprintf("for width %spx", width)
	return Request{
		Method: http.MethodGet,
		URL:    b.target.imageURL("/" + width + path),
		Header: http.Header{},
		Tags:   map[string]string{TagTestType: name, TagWidth: width},
		Checks: latencyChecks(name, b.responseMs(), b.responseTime, suffix),
	}, nil
}

func (b resizeBuilder) RequiredClasses(Env) []fixture.Class {
	return b.dist.Classes()
}

// resizeFormatBuilder combines a resize with a randomly chosen Accept format.
type resizeFormatBuilder struct{ familyBuilder }

func (b resizeFormatBuilder) Build(env Env) (Request, error) {
	width := env.Get(EnvWidth, DefaultWidth)
	format := b.randomFormat()
	path, err := b.provider.RandomPathByDistribution(b.dist)
	if err != nil {
		return Request{}, err
	}
	name := string(config.FamilyResizeFormat)
	suffix := fmt.Sprintf("for width %spx & %s", width, format)
	return Request{
		Method: http.MethodGet,
		URL:    b.target.imageURL("/" + width + path),
		Header: acceptHeader(format),
		Tags:   map[string]string{TagTestType: name, TagWidth: width, TagFormat: format},
		Checks: latencyChecks(name, b.responseMs(), b.responseTime, suffix),
	}, nil
}

func (b resizeFormatBuilder) RequiredClasses(Env) []fixture.Class {
	return b.dist.Classes()
}

// cdnCgiBuilder goes through the /cdn-cgi/image/ transformation endpoint,
// which takes the full source URL as its trailing path.
type cdnCgiBuilder struct{ familyBuilder }

func (b cdnCgiBuilder) Build(env Env) (Request, error) {
	width := env.Get(EnvWidth, DefaultWidth)
	format := b.randomFormat()
	path, err := b.provider.RandomPathByDistribution(b.dist)
	if err != nil {
		return Request{}, err
	}
	name := string(config.FamilyCdnCgi)
	suffix := fmt.Sprintf("for width %spx & %s", width, format)
	url := fmt.Sprintf("%s/cdn-cgi/image/width=%s,format=auto/%s", b.target.BaseURL, width, b.target.imageURL(path))
	return Request{
		Method: http.MethodGet,
		URL:    url,
		Header: acceptHeader(format),
		Tags:   map[string]string{TagTestType: name, TagWidth: width, TagFormat: format},
		Checks: latencyChecks(name, b.responseMs(), b.responseTime, suffix),
	}, nil
}

func (b cdnCgiBuilder) RequiredClasses(Env) []fixture.Class {
	return b.dist.Classes()
}

func acceptHeader(format string) http.Header {
	h := http.Header{}
	h.Set("Accept", fmt.Sprintf("image/%s,image/png,image/jpeg", format))
	return h
}

func latencyChecks(name, ms string, limit time.Duration, suffix string) []Check {
	return []Check{
		statusOK(name),
		contentTypeImage(name),
		fasterThan(fmt.Sprintf("%s: response time < %sms %s", name, ms, suffix), limit),
		fasterThan(fmt.Sprintf("%s: response time < 800ms %s", name, suffix), slowCeiling),
	}
}

func statusOK(name string) Check {
	return Check{Name: name + ": status is 200", Fn: func(r *Response) bool {
		return r.StatusCode == http.StatusOK
	}}
}

func contentTypeImage(name string) Check {
	return Check{Name: name + ": content-type is image", Fn: func(r *Response) bool {
		return strings.HasPrefix(r.Header.Get("Content-Type"), "image/")
	}}
}

func fasterThan(name string, limit time.Duration) Check {
	return Check{Name: name, Fn: func(r *Response) bool {
		return r.Duration < limit
	}}
}

func modernFormat(r *Response) bool {
	ct := r.Header.Get("Content-Type")
	return strings.Contains(ct, "avif") || strings.Contains(ct, "webp")
}
