package actions

import (
	"strings"

	"github.com/desertthunder/spotskill/internal/models"
)

// Extract pulls the ordinals and volume for action out of the intent.
//
// Numbers recognized upstream are preferred; when there are none the raw text is scanned.
// The playlist and device lists of the returned value are left for the caller to fill.
func Extract(action Action, intent models.Intent) models.Parameters {
	var p models.Parameters
	numbers := intent.Numbers
	if len(numbers) == 0 {
		numbers = ScanNumbers(intent.ClientRequest.Text)
	}

	switch action {
	case PlayPlaylist:
		for _, n := range numbers {
			prev := strings.ToLower(n.Previous)
			if strings.Contains(prev, "playlist") {
				p.PlaylistIndex = n.Value
			}
			if strings.Contains(prev, "device") {
				p.DeviceIndex = n.Value
			}
		}
	case StopPlayback, NextTrack, Continue:
		p.DeviceIndex = deviceOrdinal(numbers)
	case SetVolume:
		p.DeviceIndex = deviceOrdinal(numbers)
		var fallback *models.NumberToken
		for i, n := range numbers {
			prev := strings.ToLower(strings.TrimSpace(n.Previous))
			if prev == "to" {
				p.Volume, p.HasVolume = n.Value, true
			}
			if !strings.Contains(prev, "device") {
				fallback = &numbers[i]
			}
		}
		if !p.HasVolume && fallback != nil {
			p.Volume, p.HasVolume = fallback.Value, true
		}
	}
	return p
}

func deviceOrdinal(numbers []models.NumberToken) int {
	idx := 0
	for _, n := range numbers {
		if strings.Contains(strings.ToLower(n.Previous), "device") {
			idx = n.Value
		}
	}
	return idx
}
