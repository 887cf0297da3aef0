// Package api is a service providing an HTTP REST API to inspect noisypi and
// control devices.
//
// The endpoints supported are:
//
// http://localhost:8723/query/{query} - query a service, e.g. http://localhost:8723/query/noisebox/status
//
// http://localhost:8723/devices - list of devices, with their latest events
//
// http://localhost:8723/devices/{device} - a single device
//
// http://localhost:8723/devices/events - latest events by device
//
// http://localhost:8723/devices/control?id=led.blaster&control=1 - turn a device on or off
//
// http://localhost:8723/events/feed?topics=gpio,noisebox - continuous live stream of events (line delimited)
//
// http://localhost:8723/config?path=noisypi/config - GET configuration or POST to update configuration
//
// http://localhost:8723/logs - list of log files
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/noisypi/noisypi/config"
	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Service api
type Service struct {
}

// ID of the service
func (service *Service) ID() string {
	return "api"
}

func errorResponse(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), 500)
}

func apiIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Type", "text/html")
	fmt.Fprintf(w, "<html>Noisypi is listening</html>")
}

func jsonResponse(w http.ResponseWriter, obj interface{}) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	err := enc.Encode(obj)
	if err != nil {
		errorResponse(w, err)
	}
}

func query(endpoint string, q string, w http.ResponseWriter) {
	w.Header().Add("Content-Type", "application/json; charset=utf-8")

	ch := services.QueryChannel(endpoint+" "+q, 100*time.Millisecond)

	for ev := range ch {
		fmt.Fprint(w, ev.String()+"\r\n")
		w.(http.Flusher).Flush()
	}
}

func apiQuery(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Path[len("/query/"):]
	q := r.URL.Query().Get("q")
	query(endpoint, q, w)
}

// getDevicesState returns the latest events recorded in the store, keyed by
// device then topic.
func getDevicesState() map[string]map[string]interface{} {
	ret := map[string]map[string]interface{}{}
	nodes, _ := services.Stor.GetRecursive("noisypi/state/devices")
	for _, node := range nodes {
		path := strings.Split(node.Key, "/")
		if len(path) < 2 {
			continue
		}
		topic := path[len(path)-1]
		device := path[len(path)-2]
		ev := pubsub.Parse(node.Value, "")
		if ev == nil {
			continue
		}
		if ret[device] == nil {
			ret[device] = map[string]interface{}{}
		}
		ret[device][topic] = ev.Map()
	}
	return ret
}

// deviceJSON renders a device configuration with its events merged in.
func deviceJSON(dev config.DeviceConf, events map[string]interface{}) map[string]interface{} {
	entry := map[string]interface{}{}
	data, _ := json.Marshal(dev)
	json.Unmarshal(data, &entry)
	if events == nil {
		events = map[string]interface{}{}
	}
	entry["events"] = events
	return entry
}

func apiDevices(w http.ResponseWriter, r *http.Request) {
	state := getDevicesState()
	ret := map[string]interface{}{}
	for name, dev := range services.Config.Devices {
		ret[name] = deviceJSON(dev, state[name])
	}
	jsonResponse(w, ret)
}

func apiDevicesSingle(w http.ResponseWriter, r *http.Request, params map[string]string) {
	name := params["device"]
	dev, ok := services.Config.Devices[name]
	if !ok {
		http.Error(w, "not found: "+name, http.StatusNotFound)
		return
	}
	state := getDevicesState()
	jsonResponse(w, deviceJSON(dev, state[name]))
}

func apiDevicesEvents(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, getDevicesState())
}

func apiDevicesControl(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	device := q.Get("id")
	var command string
	if q.Get("control") == "1" {
		command = "on"
	} else {
		command = "off"
	}
	// send command
	ev := pubsub.NewCommand(device, command)
	services.Publisher.Emit(ev)
	jsonResponse(w, true)
}

func apiEventsFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topics := q.Get("topics")
	w.Header().Add("Content-Type", "application/json; boundary=NL")

	var ch <-chan *pubsub.Event
	if topics != "" {
		var matchers []pubsub.Topic
		for _, topic := range strings.Split(topics, ",") {
			matchers = append(matchers, pubsub.Exact(topic))
		}
		ch = services.Subscriber.Subscribe(matchers...)
	} else {
		ch = services.Subscriber.Subscribe(pubsub.All())
	}
	defer services.Subscriber.Close(ch)

	for ev := range ch {
		data := ev.Map()
		device := services.Config.LookupDeviceName(ev)
		if device != "" {
			data["device"] = device
		}
		encoder := json.NewEncoder(w)
		err := encoder.Encode(data)
		if err == nil {
			w.Write([]byte("\r\n")) // separator
		}
		if err != nil {
			break
		}
		w.(http.Flusher).Flush()
	}
}

func apiConfig(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		err := errors.New("path parameter required")
		errorResponse(w, err)
		return
	}

	value, err := services.Stor.Get(path)
	if r.Method == "GET" {
		if err != nil {
			errorResponse(w, err)
			return
		}
		w.Header().Add("Content-Type", "application/yaml; charset=utf-8")
		w.Write([]byte(value))
	} else if r.Method == "POST" {
		data, err := ioutil.ReadAll(r.Body)
		if err != nil {
			errorResponse(w, err)
			return
		}

		sout := string(data)
		if sout != value {
			services.Stor.Set(path, sout)
			// retained, so restarted services pick it up too
			topic := strings.TrimPrefix(path, "noisypi/")
			ev := pubsub.NewEvent(topic, pubsub.Fields{"config": sout})
			ev.SetRetained(true)
			services.Publisher.Emit(ev)
			log.Printf("%s changed, emitted retained %s event", path, topic)
		}
	}
}

func apiLogs(w http.ResponseWriter, r *http.Request) {
	logs := []string{}
	infos, err := ioutil.ReadDir(config.LogPath(""))
	if err != nil {
		errorResponse(w, err)
		return
	}

	for _, info := range infos {
		logs = append(logs, info.Name())
	}
	jsonResponse(w, logs)
}

func apiLogsLog(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	filename := config.LogPath(params["file"])
	file, err := os.Open(filename)
	if err != nil {
		errorResponse(w, err)
		return
	}
	defer file.Close()

	w.Header().Add("Content-Type", "text/plain; charset=utf-8")
	io.Copy(w, file)
}

func router() *mux.Router {
	router := mux.NewRouter()
	router.Path("/").HandlerFunc(apiIndex)
	router.PathPrefix("/query/").HandlerFunc(apiQuery)
	router.Path("/devices").HandlerFunc(apiDevices)
	router.Path("/devices/events").HandlerFunc(apiDevicesEvents)
	router.Path("/devices/control").HandlerFunc(apiDevicesControl)
	router.Path("/devices/{device}").HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			apiDevicesSingle(w, r, mux.Vars(r))
		})
	router.Path("/events/feed").HandlerFunc(apiEventsFeed)
	router.Path("/config").HandlerFunc(apiConfig)
	router.Path("/logs").HandlerFunc(apiLogs)
	router.Path("/logs/{file}").HandlerFunc(apiLogsLog)
	return router
}

type loggingHandler struct {
	Handler http.Handler
}

func (service loggingHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Printf("%s %s\n", req.Method, req.RequestURI)
	service.Handler.ServeHTTP(w, req)
}

func httpEndpoint() {
	// handlers.LoggingHandler wraps the ResponseWriter and loses Flush, which
	// the streaming endpoints need, so logging is done by hand
	var handler http.Handler = router()
	handler = loggingHandler{Handler: handler}
	// Allow CORS+http auth (so the api can be placed behind http auth)
	handler = handlers.CORS(
		handlers.AllowCredentials(),
		handlers.AllowedHeaders([]string{"Accept", "Authorization"}),
	)(handler)
	addr := services.Config.Endpoints.Api
	if addr == "" {
		addr = ":8723"
	}
	log.Println("Listening on " + addr)
	err := http.ListenAndServe(addr, handler)
	if err != nil {
		log.Fatalln(err)
	}
}

func recordEvents() {
	for ev := range services.Subscriber.Subscribe(pubsub.All()) {
		if ev.Topic == "config" || strings.HasPrefix(ev.Topic, "config/") {
			// mirror pushed configuration, so /config GET serves the
			// latest copy
			services.Stor.Set("noisypi/"+ev.Topic, ev.StringField("config"))
			continue
		}
		// record to store
		device := services.Config.LookupDeviceName(ev)
		if device != "" {
			key := "noisypi/state/devices/" + device + "/" + ev.Topic
			services.Stor.Set(key, ev.String())
		}
	}
}

// Run the service
func (service *Service) Run() error {
	go recordEvents()
	httpEndpoint()
	return nil
}
