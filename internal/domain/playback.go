package domain

// PlaybackState режим воспроизведения
type PlaybackState int

const (
	Playing PlaybackState = iota
	Paused
)

func (s PlaybackState) String() string {
	if s == Playing {
		return "Play"
	}
	return "Pause"
}

// Command действие оператора, декодированное из клавиши
type Command int

const (
	CommandNone Command = iota
	CommandStepBack
	CommandStepForward
	CommandSave
	CommandTogglePlay
	CommandQuit
)

func (c Command) String() string {
	switch c {
	case CommandStepBack:
		return "step_back"
	case CommandStepForward:
		return "step_forward"
	case CommandSave:
		return "save"
	case CommandTogglePlay:
		return "toggle_play"
	case CommandQuit:
		return "quit"
	default:
		return "none"
	}
}

// Привязки клавиш; регистр имеет значение
const (
	keyStepBack    Key = 'a'
	keyStepForward Key = 'd'
	keySave        Key = 's'
	keyTogglePlay  Key = ' '
	keyQuit        Key = 'q'
)

// Interpret переводит код клавиши в команду.
// Всё, что не привязано (включая NoKey), даёт CommandNone.
func Interpret(key Key) Command {
	switch key {
	case keyStepBack:
		return CommandStepBack
	case keyStepForward:
		return CommandStepForward
	case keySave:
		return CommandSave
	case keyTogglePlay:
		return CommandTogglePlay
	case keyQuit:
		return CommandQuit
	default:
		return CommandNone
	}
}

// CommandResult что изменилось после применения команды
type CommandResult struct {
	IndexChanged     bool
	PlayStateChanged bool
	SaveRequested    bool
	QuitRequested    bool
}

// PlaybackController единственный владелец индекса кадра и режима воспроизведения.
// Не потокобезопасен: им пользуется только цикл захвата.
type PlaybackController struct {
	index    int
	maxIndex int
	state    PlaybackState
}

// NewPlaybackController создаёт контроллер на кадре 0 в режиме Playing
func NewPlaybackController(maxIndex int) *PlaybackController {
	if maxIndex < 0 {
		maxIndex = 0
	}
	return &PlaybackController{
		maxIndex: maxIndex,
		state:    Playing,
	}
}

// Index текущий индекс кадра
func (c *PlaybackController) Index() int { return c.index }

// MaxIndex последний допустимый индекс
func (c *PlaybackController) MaxIndex() int { return c.maxIndex }

// State текущий режим воспроизведения
func (c *PlaybackController) State() PlaybackState { return c.state }

// Playing true, если видео воспроизводится
func (c *PlaybackController) Playing() bool { return c.state == Playing }

// SetIndexFromExternalSeek принимает позицию ползунка
func (c *PlaybackController) SetIndexFromExternalSeek(value int) {
	c.index = c.clamp(value)
}

// Advance сдвигает индекс на delta с обрезкой по границам и возвращает новый индекс.
// Дойти до края видео - нормальная ситуация, не ошибка.
func (c *PlaybackController) Advance(delta int) int {
	switch {
	case delta > 0 && delta > c.maxIndex-c.index:
		c.index = c.maxIndex
	case delta < 0 && delta < -c.index:
		c.index = 0
	default:
		c.index += delta
	}
	return c.index
}

// Interpret см. пакетную функцию Interpret
func (c *PlaybackController) Interpret(key Key) Command {
	return Interpret(key)
}

// ApplyCommand выполняет команду. Сохранение и выход контроллер только
// сигнализирует, выполняет их вызывающий код.
func (c *PlaybackController) ApplyCommand(cmd Command, skip int) CommandResult {
	var res CommandResult
	switch cmd {
	case CommandStepBack:
		before := c.index
		res.IndexChanged = c.Advance(-skip) != before
	case CommandStepForward:
		before := c.index
		res.IndexChanged = c.Advance(skip) != before
	case CommandTogglePlay:
		if c.state == Playing {
			c.state = Paused
		} else {
			c.state = Playing
		}
		res.PlayStateChanged = true
	case CommandSave:
		res.SaveRequested = true
	case CommandQuit:
		res.QuitRequested = true
	}
	return res
}

// Status снимок состояния для вывода
func (c *PlaybackController) Status(saved bool, savePath string) SessionStatus {
	return SessionStatus{
		FrameIndex:        c.index,
		MaxFrameIndex:     c.maxIndex,
		State:             c.state,
		LastActionWasSave: saved,
		LastSavePath:      savePath,
	}
}

func (c *PlaybackController) clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > c.maxIndex {
		return c.maxIndex
	}
	return v
}
