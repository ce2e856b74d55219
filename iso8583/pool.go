package iso8583

import "sync"

// packPool recycles scratch buffers used while packing messages.
var packPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, DefaultBufferSize/2)
		return &buf
	},
}

func getBuffer() []byte {
	buf := packPool.Get().(*[]byte)
	return (*buf)[:0]
}

func putBuffer(buf []byte) {
	if cap(buf) <= DefaultBufferSize { // Don't pool huge buffers
		b := buf[:0]
		packPool.Put(&b)
	}
}
