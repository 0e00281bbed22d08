package tracking_http

import "encoding/base64"

// trackingPixelB64 is the canonical 43-byte transparent 1x1 PNG embedded in
// outbound emails. The exact bytes are part of the endpoint contract.
const trackingPixelB64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

var trackingPixel = mustDecodePixel()

func mustDecodePixel() []byte {
	pixel, err := base64.StdEncoding.DecodeString(trackingPixelB64)
	if err != nil {
		panic("invalid tracking pixel constant: " + err.Error())
	}
	return pixel
}

// TrackingPixel returns the pixel bytes served by the open-tracking endpoint.
func TrackingPixel() []byte {
	return trackingPixel
}
