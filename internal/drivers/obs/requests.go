package obs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mousetraptech/productionhub/internal/oscproto"
)

// dispatchOSC translates one (address, args) pair, already stripped of
// the driver's prefix, into the matching obs-websocket request(s)
// (spec.md §4.5's OSC-to-Request mapping table). Path segments are
// URL-decoded before use so scene/source names carrying "/" or spaces
// survive the wire.
func (d *Driver) dispatchOSC(address string, args []oscproto.Arg) error {
	rawSegs := strings.Split(address, "/")
	segs := make([]string, len(rawSegs))
	for i, s := range rawSegs {
		decoded, err := url.PathUnescape(s)
		if err != nil {
			decoded = s
		}
		segs[i] = decoded
	}

	switch {
	case len(segs) == 2 && segs[0] == "scene":
		_, err := d.client.Call("SetCurrentProgramScene", map[string]string{"sceneName": segs[1]})
		return err

	case len(segs) == 3 && segs[0] == "scene" && segs[1] == "preview":
		_, err := d.client.Call("SetCurrentPreviewScene", map[string]string{"sceneName": segs[2]})
		return err

	case address == "stream/start":
		_, err := d.client.Call("StartStream", nil)
		return err
	case address == "stream/stop":
		_, err := d.client.Call("StopStream", nil)
		return err
	case address == "stream/toggle":
		_, err := d.client.Call("ToggleStream", nil)
		return err

	case address == "record/start":
		_, err := d.client.Call("StartRecord", nil)
		return err
	case address == "record/stop":
		_, err := d.client.Call("StopRecord", nil)
		return err
	case address == "record/toggle":
		_, err := d.client.Call("ToggleRecord", nil)
		return err

	case len(segs) == 2 && segs[0] == "transition" && segs[1] != "duration":
		_, err := d.client.Call("SetCurrentSceneTransition", map[string]string{"transitionName": segs[1]})
		return err

	case address == "transition/duration":
		ms, ok := argFloat(args)
		if !ok {
			return fmt.Errorf("obs: transition/duration requires a numeric millisecond argument")
		}
		_, err := d.client.Call("SetCurrentSceneTransitionDuration", map[string]int{"transitionDuration": int(ms)})
		return err

	case address == "virtualcam/start":
		_, err := d.client.Call("StartVirtualCam", nil)
		return err
	case address == "virtualcam/stop":
		_, err := d.client.Call("StopVirtualCam", nil)
		return err

	case len(segs) == 3 && segs[0] == "source" && segs[2] == "visible":
		visible, ok := argBool(args)
		if !ok {
			return fmt.Errorf("obs: source visibility requires a bool argument")
		}
		return d.setSourceVisible(segs[1], visible)
	}

	return fmt.Errorf("obs: unrecognized address %q", address)
}

// currentSceneResponse and sceneItemIDResponse are the decoded
// responseData shapes for GetCurrentProgramScene and GetSceneItemId,
// enough to carry the
// 3-step source-visibility flow (spec.md §4.5): resolve the current
// program scene, resolve the source name to a scene item id within it,
// then toggle that item's enabled state.
type currentSceneResponse struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
}

type sceneItemIDResponse struct {
	SceneItemID int `json:"sceneItemId"`
}

func (d *Driver) setSourceVisible(sourceName string, visible bool) error {
	sceneRaw, err := d.client.Call("GetCurrentProgramScene", nil)
	if err != nil {
		return fmt.Errorf("obs: resolving current scene: %w", err)
	}
	var scene currentSceneResponse
	if err := json.Unmarshal(sceneRaw, &scene); err != nil {
		return fmt.Errorf("obs: decoding current scene: %w", err)
	}

	idRaw, err := d.client.Call("GetSceneItemId", map[string]string{
		"sceneName":  scene.CurrentProgramSceneName,
		"sourceName": sourceName,
	})
	if err != nil {
		return fmt.Errorf("obs: resolving scene item id for %q: %w", sourceName, err)
	}
	var item sceneItemIDResponse
	if err := json.Unmarshal(idRaw, &item); err != nil {
		return fmt.Errorf("obs: decoding scene item id: %w", err)
	}

	_, err = d.client.Call("SetSceneItemEnabled", map[string]any{
		"sceneName":       scene.CurrentProgramSceneName,
		"sceneItemId":     item.SceneItemID,
		"sceneItemEnabled": visible,
	})
	return err
}

func argFloat(args []oscproto.Arg) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	return args[0].AsFloat64()
}

func argBool(args []oscproto.Arg) (bool, bool) {
	if len(args) == 0 {
		return false, false
	}
	if args[0].Kind == oscproto.KindBool {
		return args[0].Bool, true
	}
	if n, ok := args[0].AsFloat64(); ok {
		return n != 0, true
	}
	return false, false
}

// translateEvent maps an obs-websocket Event into the hub's feedback
// address space (spec.md §4.5's event-to-feedback mapping).
func translateEvent(eventType string, data json.RawMessage) (address string, arg oscproto.Arg, ok bool) {
	switch eventType {
	case "CurrentProgramSceneChanged":
		var d struct {
			SceneName string `json:"sceneName"`
		}
		if json.Unmarshal(data, &d) != nil {
			return "", oscproto.Arg{}, false
		}
		return "scene/current", oscproto.Str(d.SceneName), true

	case "StreamStateChanged":
		var d struct {
			OutputActive bool `json:"outputActive"`
		}
		if json.Unmarshal(data, &d) != nil {
			return "", oscproto.Arg{}, false
		}
		return "stream/status", boolToIntArg(d.OutputActive), true

	case "RecordStateChanged":
		var d struct {
			OutputActive bool `json:"outputActive"`
		}
		if json.Unmarshal(data, &d) != nil {
			return "", oscproto.Arg{}, false
		}
		return "record/status", boolToIntArg(d.OutputActive), true
	}
	return "", oscproto.Arg{}, false
}

func boolToIntArg(b bool) oscproto.Arg {
	if b {
		return oscproto.Int(1)
	}
	return oscproto.Int(0)
}
