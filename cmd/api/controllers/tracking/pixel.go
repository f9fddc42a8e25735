package tracking

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/application"
)

// pixelGIF is a 1x1 transparent GIF.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Open serves the tracking pixel and records the open event. The pixel
// always renders, even for unknown ids, so mail clients see nothing odd.
func Open(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		file := p.ByName("file")
		trackingID := strings.TrimSuffix(strings.TrimSuffix(file, ".png"), ".gif")

		if len(trackingID) == 16 {
			ip, _, _ := net.SplitHostPort(r.RemoteAddr)
			if err := app.Store.RecordOpen(trackingID, time.Now().UTC(), ip, r.UserAgent()); err != nil {
				zap.S().Warnf("Failed to record open for %s: %v", trackingID, err)
			}
		}

		w.Header().Set("Content-Type", "image/gif")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(pixelGIF)
	}
}
