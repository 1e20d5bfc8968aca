package sub

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/crowvane/nodeconv/internal/model"
)

// ExplodeVMess decodes the base64-JSON vmess:// form. Field values in the
// wild are typed loosely (ports and versions arrive as numbers or strings),
// so everything goes through the tolerant accessors below.
func ExplodeVMess(link string) (model.Proxy, bool) {
	if !strings.HasPrefix(link, "vmess://") {
		return model.Proxy{}, false
	}

	raw, ok := decodeB64ToString(removeSpaceTabCRLF(strings.TrimPrefix(link, "vmess://")))
	if !ok {
		return model.Proxy{}, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return model.Proxy{}, false
	}

	server := firstNonEmpty(jsonString(fields, "add"), jsonString(fields, "address"))
	if server == "" {
		return model.Proxy{}, false
	}
	port := jsonInt(fields, "port")
	if port < 1 || port > 65535 {
		return model.Proxy{}, false
	}
	id := jsonString(fields, "id")
	if _, err := uuid.Parse(id); err != nil {
		return model.Proxy{}, false
	}

	network := jsonString(fields, "net")
	if network == "" {
		network = "tcp"
	}
	host := jsonString(fields, "host")
	path := jsonString(fields, "path")
	serviceName := ""
	switch network {
	case "grpc":
		serviceName = firstNonEmpty(jsonString(fields, "serviceName"), path)
		path = ""
	case "tcp":
		// tcp with an http header type is the legacy http transport.
		if jsonString(fields, "type") == "http" {
			network = "http"
		} else {
			host, path = "", ""
		}
	}

	tlsStr := jsonString(fields, "tls")
	tlsOn := tlsStr == "tls" || looseBool(tlsStr)
	sni := jsonString(fields, "sni")
	if sni == "" && tlsOn {
		sni = host
	}

	payload := model.VMess{
		UUID:        id,
		AlterID:     jsonInt(fields, "aid"),
		Cipher:      firstNonEmpty(jsonString(fields, "scy"), jsonString(fields, "security"), "auto"),
		Network:     network,
		Host:        host,
		Path:        path,
		ServiceName: serviceName,
		TLS:         tlsOn,
		SNI:         sni,
		ALPN:        splitList(jsonString(fields, "alpn")),
		Fingerprint: jsonString(fields, "fp"),
	}
	if _, present := fields["allowInsecure"]; present {
		v := looseBool(jsonString(fields, "allowInsecure"))
		payload.SkipCertVerify = &v
	}

	name := jsonString(fields, "ps")
	if name == "" {
		name = model.DefaultRemark(server, uint16(port))
	}
	return model.Proxy{
		Group:   model.DefaultGroup(model.TypeVMess),
		Name:    name,
		Server:  server,
		Port:    uint16(port),
		Payload: payload,
	}, true
}

func jsonString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func jsonInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}
