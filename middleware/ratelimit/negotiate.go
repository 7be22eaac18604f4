package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	mimeHTML = "text/html"
	mimeJSON = "application/json"
)

type acceptRange struct {
	typ, sub string
	q        float64
}

// negotiate escolhe, entre offers, o tipo preferido pelo header Accept.
//
// Sem Accept devolve o primeiro offer; empate de q mantém a ordem dos offers;
// se nenhum offer é aceito devolve "".
func negotiate(r *http.Request, offers ...string) string {
	if len(offers) == 0 {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Accept"))
	if header == "" {
		return offers[0]
	}
	ranges := parseAccept(header)

	best, bestQ := "", 0.0
	for _, offer := range offers {
		q := matchQ(ranges, offer)
		if q > bestQ {
			best, bestQ = offer, q
		}
	}
	return best
}

func parseAccept(header string) []acceptRange {
	parts := strings.Split(header, ",")
	out := make([]acceptRange, 0, len(parts))
	for _, part := range parts {
		fields := strings.Split(part, ";")
		media := strings.ToLower(strings.TrimSpace(fields[0]))
		typ, sub, ok := strings.Cut(media, "/")
		if !ok || typ == "" || sub == "" {
			continue
		}
		q := 1.0
		for _, p := range fields[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.ToLower(strings.TrimSpace(k)) != "q" {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
				q = f
			}
		}
		out = append(out, acceptRange{typ: typ, sub: sub, q: q})
	}
	return out
}

// matchQ devolve o q do range mais específico que casa com offer.
func matchQ(ranges []acceptRange, offer string) float64 {
	typ, sub, _ := strings.Cut(offer, "/")

	q, specificity := 0.0, -1
	for _, ar := range ranges {
		s := -1
		switch {
		case ar.typ == typ && ar.sub == sub:
			s = 2
		case ar.typ == typ && ar.sub == "*":
			s = 1
		case ar.typ == "*" && ar.sub == "*":
			s = 0
		}
		if s > specificity {
			q, specificity = ar.q, s
		}
	}
	return q
}

// NegotiatedErrorRenderer é o ErrorRenderer padrão: JSON {"message": ...} quando o
// cliente prefere application/json, texto puro nos demais casos.
func NegotiatedErrorRenderer(message string) ErrorRenderer {
	return func(r *http.Request, resp *Response) (*Response, error) {
		if negotiate(r, mimeHTML, mimeJSON) == mimeJSON {
			if err := resp.SetJSON(map[string]string{"message": message}); err != nil {
				return nil, err
			}
			return resp, nil
		}
		return resp.SetContentType("text/plain; charset=utf-8").SetBody(message), nil
	}
}
