package iso8583

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// messagePool holds reusable Message objects to reduce allocations.
var messagePool = sync.Pool{
	New: func() interface{} {
		return &Message{nodes: make([]node, 1, 32)}
	},
}

// node is one entry of the message tree. Top-level nodes are fields 0..192
// where 0 is the MTI; their descendants are subfields numbered from 1.
type node struct {
	num      int
	parent   int
	children []int // node indexes, ordered by num
	tag      string
	value    Field
	hasValue bool
}

func (n *node) present() bool {
	return n.hasValue || len(n.children) > 0
}

// Message is an ISO8583 message held as a tree of fields addressed by
// dotted paths such as "0", "11", "43.1" or "55.3". Nodes live in a single
// slice and refer to each other by index.
type Message struct {
	nodes           []node // nodes[0] is the root
	packager        *CompiledPackager
	header          []byte
	trailer         []byte
	validationLevel ValidationLevel
	mu              sync.RWMutex
}

// NewMessage retrieves a Message from the pool and initializes it.
func NewMessage(opts ...MessageOption) *Message {
	msg := messagePool.Get().(*Message)
	msg.reset()
	for _, opt := range opts {
		opt(msg)
	}
	return msg
}

// Release returns the message to the pool for reuse.
// The message must not be used after Release is called.
func (m *Message) Release() {
	m.reset()
	messagePool.Put(m)
}

// Reset clears the message for reuse.
func (m *Message) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *Message) reset() {
	m.clearNodes()
	m.header = nil
	m.trailer = nil
	m.packager = nil
	m.validationLevel = ValidationNone
}

func (m *Message) clearNodes() {
	if cap(m.nodes) == 0 {
		m.nodes = make([]node, 1, 32)
	}
	m.nodes = m.nodes[:1]
	m.nodes[0] = node{parent: -1}
}

// Clear removes every field but keeps the packager, header and trailer.
func (m *Message) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearNodes()
}

// ParsePath splits a dotted field path into its numeric segments. The first
// segment is a top-level field in 0..192 other than the bitmap indicators
// 1 and 65; further segments are subfield numbers starting at 1.
func ParsePath(path string) ([]int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}

	parts := strings.Split(path, ".")
	segs := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		if i == 0 && n > MaxFieldNumber {
			return nil, fmt.Errorf("%w: %q: field %d out of range", ErrInvalidPath, path, n)
		}
		if i > 0 && n < 1 {
			return nil, fmt.Errorf("%w: %q: subfields start at 1", ErrInvalidPath, path)
		}
		segs[i] = n
	}

	if segs[0] == 1 || segs[0] == 65 {
		return nil, fmt.Errorf("%w: %d is a bitmap indicator", ErrInvalidField, segs[0])
	}
	if segs[0] == 0 && len(segs) > 1 {
		return nil, fmt.Errorf("%w: %q: the MTI has no subfields", ErrInvalidPath, path)
	}
	return segs, nil
}

func formatPath(segs []int) string {
	var sb strings.Builder
	for i, s := range segs {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(s))
	}
	return sb.String()
}

// childIndex returns the node index of the child numbered num, or -1.
func (m *Message) childIndex(parent, num int) int {
	for _, idx := range m.nodes[parent].children {
		if m.nodes[idx].num == num {
			return idx
		}
	}
	return -1
}

// addChild inserts a new child keeping the children ordered by number.
func (m *Message) addChild(parent, num int) int {
	idx := len(m.nodes)
	m.nodes = append(m.nodes, node{num: num, parent: parent})

	children := m.nodes[parent].children
	pos := sort.Search(len(children), func(i int) bool { return m.nodes[children[i]].num > num })
	children = append(children, 0)
	copy(children[pos+1:], children[pos:])
	children[pos] = idx
	m.nodes[parent].children = children
	return idx
}

func (m *Message) find(segs []int) int {
	idx := 0
	for _, s := range segs {
		idx = m.childIndex(idx, s)
		if idx < 0 {
			return -1
		}
	}
	return idx
}

// ensure walks segs creating missing nodes. A node that gains children
// stops being a leaf and loses its own value.
func (m *Message) ensure(segs []int) int {
	idx := 0
	for _, s := range segs {
		child := m.childIndex(idx, s)
		if child < 0 {
			if idx != 0 {
				m.nodes[idx].hasValue = false
				m.nodes[idx].value = Field{}
			}
			child = m.addChild(idx, s)
		}
		idx = child
	}
	return idx
}

func (m *Message) setLocked(path string, field Field, tag string) error {
	segs, err := ParsePath(path)
	if err != nil {
		return err
	}
	idx := m.ensure(segs)
	n := &m.nodes[idx]
	n.value = field
	n.hasValue = true
	n.tag = tag
	n.children = nil
	return nil
}

// SetString stores a character value at path.
func (m *Message) SetString(path, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(path, NewTextField(value), "")
}

// SetBytes stores a binary value at path.
func (m *Message) SetBytes(path string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(path, NewBinaryField(value), "")
}

// SetTagged stores a tagged subfield, as used by TLV composites. When
// binary is false value is character data.
func (m *Message) SetTagged(path, tag string, value []byte, binary bool) error {
	field := NewBinaryField(value)
	field.binary = binary
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(path, field, tag)
}

// SetInt stores value as a decimal string zero-padded to width.
func (m *Message) SetInt(path string, value, width int) error {
	if value < 0 {
		return fmt.Errorf("%w: negative value %d", ErrInvalidField, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(path, Field{data: formatInt(value, width)}, "")
}

// SetMTI sets the 4 character Message Type Indicator.
func (m *Message) SetMTI(mti string) error {
	if len(mti) != 4 {
		return ErrInvalidMTI
	}
	return m.SetString("0", mti)
}

// MTI returns the Message Type Indicator, or "" when unset.
func (m *Message) MTI() string {
	f, ok := m.Get("0")
	if !ok {
		return ""
	}
	return f.String()
}

// Unset removes the node at path together with its subtree. Removing an
// absent path is not an error.
func (m *Message) Unset(path string) error {
	segs, err := ParsePath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.find(segs)
	if idx < 0 {
		return nil
	}
	parent := m.nodes[idx].parent
	children := m.nodes[parent].children
	for i, c := range children {
		if c == idx {
			m.nodes[parent].children = append(children[:i:i], children[i+1:]...)
			break
		}
	}
	// Orphaned nodes stay in the arena until the next Clear or Reset.
	m.nodes[idx] = node{num: m.nodes[idx].num, parent: -1}
	return nil
}

// Get returns the value stored at path. Composite nodes built from
// subfields have no value of their own.
func (m *Message) Get(path string) (Field, bool) {
	segs, err := ParsePath(path)
	if err != nil {
		return Field{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.find(segs)
	if idx < 0 || !m.nodes[idx].hasValue {
		return Field{}, false
	}
	return m.nodes[idx].value, true
}

// GetString returns the value at path as a string. Binary values render as
// uppercase hex.
func (m *Message) GetString(path string) (string, error) {
	f, ok := m.Get(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFieldNotFound, path)
	}
	return f.String(), nil
}

// GetBytes returns the raw value at path.
func (m *Message) GetBytes(path string) ([]byte, error) {
	f, ok := m.Get(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, path)
	}
	return f.Bytes(), nil
}

// Tag returns the tag carried by the subfield at path.
func (m *Message) Tag(path string) (string, bool) {
	segs, err := ParsePath(path)
	if err != nil {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.find(segs)
	if idx < 0 || m.nodes[idx].tag == "" {
		return "", false
	}
	return m.nodes[idx].tag, true
}

// Has reports whether path holds a value or subfields.
func (m *Message) Has(path string) bool {
	segs, err := ParsePath(path)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.find(segs)
	return idx >= 0 && m.nodes[idx].present()
}

// HasField reports whether the top-level field is present.
func (m *Message) HasField(fieldNum int) bool {
	return m.Has(strconv.Itoa(fieldNum))
}

// Children returns the numbers of the present children of path in
// ascending order. An empty path lists the top-level fields.
func (m *Message) Children(path string) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := 0
	if path != "" {
		segs, err := ParsePath(path)
		if err != nil {
			return nil
		}
		if idx = m.find(segs); idx < 0 {
			return nil
		}
	}
	return m.presentChildren(idx)
}

func (m *Message) presentChildren(idx int) []int {
	var nums []int
	for _, c := range m.nodes[idx].children {
		if m.nodes[c].present() {
			nums = append(nums, m.nodes[c].num)
		}
	}
	return nums
}

// MaxField returns the highest present top-level field, 0 when only the
// MTI or nothing is set.
func (m *Message) MaxField() int {
	fields := m.Children("")
	if len(fields) == 0 {
		return 0
	}
	return fields[len(fields)-1]
}

// MaxSubfield returns the highest present subfield number under path, or 0.
func (m *Message) MaxSubfield(path string) int {
	subs := m.Children(path)
	if len(subs) == 0 {
		return 0
	}
	return subs[len(subs)-1]
}

// GetPresentFields returns the present data fields (MTI excluded) in
// ascending order.
func (m *Message) GetPresentFields() []int {
	fields := m.Children("")
	if len(fields) > 0 && fields[0] == 0 {
		fields = fields[1:]
	}
	return fields
}

// Walk visits every present node depth first in field order. fn receives
// the dotted path, the depth (0 for top-level fields) and the node's tag.
// Composite nodes are visited with ok set to false.
func (m *Message) Walk(fn func(path string, depth int, tag string, value Field, ok bool)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.walk(0, nil, fn)
}

func (m *Message) walk(idx int, segs []int, fn func(string, int, string, Field, bool)) {
	for _, c := range m.nodes[idx].children {
		n := &m.nodes[c]
		if !n.present() {
			continue
		}
		path := append(segs[:len(segs):len(segs)], n.num)
		fn(formatPath(path), len(path)-1, n.tag, n.value, n.hasValue)
		if len(n.children) > 0 {
			m.walk(c, path, fn)
		}
	}
}

// Header returns the message header.
func (m *Message) Header() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.header
}

// SetHeader replaces the message header.
func (m *Message) SetHeader(header []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.header = append([]byte(nil), header...)
}

// Trailer returns the bytes packed after the last field.
func (m *Message) Trailer() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trailer
}

// SetTrailer replaces the message trailer.
func (m *Message) SetTrailer(trailer []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trailer = append([]byte(nil), trailer...)
}

// Packager returns the schema used to pack and unpack the message.
func (m *Message) Packager() *CompiledPackager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.packager
}

// SetPackager replaces the schema used to pack and unpack the message.
func (m *Message) SetPackager(p *CompiledPackager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packager = p
}

// Clone creates a deep copy of the message. The packager is shared.
func (m *Message) Clone() *Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clone := NewMessage()
	clone.packager = m.packager
	clone.validationLevel = m.validationLevel
	if m.header != nil {
		clone.header = append([]byte(nil), m.header...)
	}
	if m.trailer != nil {
		clone.trailer = append([]byte(nil), m.trailer...)
	}

	clone.nodes = make([]node, len(m.nodes))
	for i, n := range m.nodes {
		n.value = n.value.clone()
		if n.children != nil {
			n.children = append([]int(nil), n.children...)
		}
		clone.nodes[i] = n
	}
	return clone
}

// CreateResponse clones the message, turns the MTI into its response
// class (0200 -> 0210) and sets the response code in field 39.
func (m *Message) CreateResponse(responseCode string) (*Message, error) {
	mti := m.MTI()
	if len(mti) != 4 || mti[2] != '0' {
		return nil, fmt.Errorf("cannot create response from MTI: %q", mti)
	}

	resMsg := m.Clone()
	if err := resMsg.SetMTI(mti[:2] + "1" + mti[3:]); err != nil {
		resMsg.Release()
		return nil, err
	}
	if err := resMsg.SetString("39", responseCode); err != nil {
		resMsg.Release()
		return nil, err
	}
	return resMsg, nil
}

// IsNetworkManagement reports whether the MTI is of the 08xx class.
func (m *Message) IsNetworkManagement() bool {
	mti := m.MTI()
	return len(mti) == 4 && mti[1] == '8'
}

// Validate runs the packager's pre-compiled validator against the message.
func (m *Message) Validate() error {
	p := m.Packager()
	if p == nil || p.validator == nil {
		return nil
	}
	return p.validator.ValidateMessage(m, m.GetValidationLevel())
}

// SetValidationLevel sets the validation level for this message instance.
func (m *Message) SetValidationLevel(level ValidationLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationLevel = level
}

// GetValidationLevel returns the current validation level.
func (m *Message) GetValidationLevel() ValidationLevel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validationLevel
}
