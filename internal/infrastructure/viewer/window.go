package viewer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"image"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"

	"frame-capture/internal/application"
	"frame-capture/internal/domain"
)

const (
	eventBacklog    = 64
	shutdownTimeout = 2 * time.Second
)

//go:embed index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Просмотрщик локальный, разрешаем все подключения
	},
}

// Opener поднимает HTTP сервер просмотрщика
type Opener struct {
	Addr string
	// Listener используется вместо Addr, если задан
	Listener net.Listener
	// WaitForViewer: Open не возвращается, пока не подключится первый браузер
	WaitForViewer bool
	StreamQuality int
	Debug         bool
	// Handlers дополнительные обработчики на том же сервере, например /metrics
	Handlers map[string]http.Handler
	Logger   application.Logger
}

// Window окно просмотра в браузере. Show, SetSeekPosition, WaitKey и Close
// вызываются из одного потока цикла захвата.
type Window struct {
	opts    domain.DisplayOptions
	quality int
	logger  application.Logger
	debug   bool

	server   *http.Server
	listener net.Listener

	mutex     sync.Mutex
	clients   map[*client]struct{}
	lastFrame []byte
	lastSeek  []byte
	closed    bool

	keys  chan domain.Key
	seeks chan int

	firstViewer     chan struct{}
	firstViewerOnce sync.Once

	frameCounter int
	startTime    time.Time
}

// Open запускает сервер и возвращает окно
func (o *Opener) Open(ctx context.Context, opts domain.DisplayOptions) (domain.Display, error) {
	w, err := o.open(opts)
	if err != nil {
		return nil, err
	}
	if !o.WaitForViewer {
		return w, nil
	}

	w.logger.Info("Ожидание подключения браузера: %s", w.URL())
	select {
	case <-w.firstViewer:
		return w, nil
	case <-ctx.Done():
		_ = w.Close()
		return nil, ctx.Err()
	}
}

func (o *Opener) open(opts domain.DisplayOptions) (*Window, error) {
	ln := o.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", o.Addr)
		if err != nil {
			return nil, fmt.Errorf("прослушивание %s: %w", o.Addr, err)
		}
	}
	quality := o.StreamQuality
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	w := &Window{
		opts:        opts,
		quality:     quality,
		logger:      o.Logger,
		debug:       o.Debug,
		listener:    ln,
		clients:     make(map[*client]struct{}),
		keys:        make(chan domain.Key, eventBacklog),
		seeks:       make(chan int, eventBacklog),
		firstViewer: make(chan struct{}),
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handleIndex)
	mux.HandleFunc("/ws", w.handleWebSocket)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	for pattern, h := range o.Handlers {
		mux.Handle(pattern, h)
	}
	w.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := w.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("Ошибка сервера просмотрщика: %v", err)
		}
	}()

	w.logger.Info("Окно %s доступно по адресу %s", opts.WindowName, w.URL())
	return w, nil
}

// URL адрес страницы просмотрщика
func (w *Window) URL() string {
	return "http://" + w.listener.Addr().String() + "/"
}

// Show кодирует кадр в JPEG и рассылает его всем браузерам
func (w *Window) Show(img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(w.quality)); err != nil {
		return fmt.Errorf("кодирование кадра: %w", err)
	}
	data := buf.Bytes()

	w.mutex.Lock()
	w.lastFrame = data
	w.broadcast(outMessage{kind: websocket.BinaryMessage, data: data})
	w.mutex.Unlock()

	w.frameCounter++
	if w.debug && w.frameCounter%30 == 0 {
		elapsed := time.Since(w.startTime).Seconds()
		w.logger.Debug("Отправлено фреймов: %d, FPS: %.2f, Размер последнего фрейма: %d байт",
			w.frameCounter, float64(w.frameCounter)/elapsed, len(data))
	}
	return nil
}

// SetSeekPosition передвигает ползунок у всех браузеров
func (w *Window) SetSeekPosition(index int) error {
	data, err := json.Marshal(seekbarMessage{
		Type: "seekbar",
		Name: w.opts.SeekBarName,
		Pos:  index,
		Max:  w.opts.SeekMax,
	})
	if err != nil {
		return err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if bytes.Equal(data, w.lastSeek) {
		return nil
	}
	w.lastSeek = data
	w.broadcast(outMessage{kind: websocket.TextMessage, data: data})
	return nil
}

// WaitKey ждёт клавишу не дольше wait. Перемещения ползунка, пришедшие
// за это время, передаются в OnSeek.
func (w *Window) WaitKey(wait time.Duration) domain.Key {
	w.drainSeeks()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case key := <-w.keys:
			w.drainSeeks()
			return key
		case pos := <-w.seeks:
			w.applySeek(pos)
		case <-timer.C:
			return domain.NoKey
		}
	}
}

// Close отключает браузеры и останавливает сервер
func (w *Window) Close() error {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return nil
	}
	w.closed = true
	for c := range w.clients {
		delete(w.clients, c)
		close(c.send)
	}
	w.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("остановка сервера просмотрщика: %w", err)
	}
	return nil
}

func (w *Window) drainSeeks() {
	for {
		select {
		case pos := <-w.seeks:
			w.applySeek(pos)
		default:
			return
		}
	}
}

func (w *Window) applySeek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > w.opts.SeekMax {
		pos = w.opts.SeekMax
	}
	if w.opts.OnSeek != nil {
		w.opts.OnSeek(pos)
	}
}

// dispatch вызывается из readLoop клиентов
func (w *Window) dispatch(msg inMessage) {
	switch msg.Type {
	case "key":
		select {
		case w.keys <- domain.Key(msg.Key):
		default:
			w.logger.Debug("Очередь клавиш переполнена, клавиша %d отброшена", msg.Key)
		}
	case "seek":
		select {
		case w.seeks <- msg.Pos:
		default:
			w.logger.Debug("Очередь ползунка переполнена, позиция %d отброшена", msg.Pos)
		}
	default:
		w.logger.Debug("Неизвестный тип сообщения: %q", msg.Type)
	}
}

// broadcast вызывается под mutex
func (w *Window) broadcast(m outMessage) {
	for c := range w.clients {
		if !c.enqueue(m) {
			w.logger.Debug("Клиент %s не успевает, сообщение отброшено", c.id)
		}
	}
}

func (w *Window) register(c *client) bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return false
	}
	w.clients[c] = struct{}{}
	if w.lastFrame != nil {
		c.enqueue(outMessage{kind: websocket.BinaryMessage, data: w.lastFrame})
	}
	if w.lastSeek != nil {
		c.enqueue(outMessage{kind: websocket.TextMessage, data: w.lastSeek})
	}
	w.firstViewerOnce.Do(func() { close(w.firstViewer) })
	return true
}

func (w *Window) unregister(c *client) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if _, ok := w.clients[c]; ok {
		delete(w.clients, c)
		close(c.send)
	}
	w.logger.Info("Клиент отключен: %s", c.id)
}

func (w *Window) handleWebSocket(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Error("Ошибка при установке WebSocket соединения: %v", err)
		return
	}

	c := newClient(conn, w)
	if !w.register(c) {
		conn.Close()
		return
	}
	w.logger.Info("Новый клиент подключен: %s (%s)", c.id, r.RemoteAddr)

	go c.writeLoop()
	c.readLoop()
}

func (w *Window) handleIndex(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(rw, r)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(rw, struct {
		WindowName  string
		SeekBarName string
		SeekMax     int
	}{w.opts.WindowName, w.opts.SeekBarName, w.opts.SeekMax})
	if err != nil {
		w.logger.Error("Ошибка отрисовки страницы: %v", err)
	}
}
