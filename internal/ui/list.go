package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/spotskill/internal/models"
)

var (
	_ list.Item = deviceItem{}
)

// deviceItem wraps a registry [models.Device] with its ordinal to implement [list.Item].
type deviceItem struct {
	ordinal int
	device  *models.Device
}

func (i deviceItem) FilterValue() string { return i.device.Name() + " " + i.device.Room() }
func (i deviceItem) Title() string {
	title := fmt.Sprintf("%d. %s", i.ordinal, i.device.Name())
	if i.device.IsMain() {
		title += " ★"
	}
	return title
}
func (i deviceItem) Description() string {
	return fmt.Sprintf("%s • volume %d", strings.ReplaceAll(i.device.Room(), "_", " "), i.device.DefaultVolume())
}

func deviceItems(devices []*models.Device) []list.Item {
	items := make([]list.Item, len(devices))
	for i, d := range devices {
		items[i] = deviceItem{ordinal: i + 1, device: d}
	}
	return items
}
