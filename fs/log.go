package fs

import (
	"rv6/limits"
	"rv6/spinlock"
	"rv6/stats"
)

// logheader_t mirrors the on-disk header block: how many blocks the
// current transaction holds, and which home block each one belongs to.
// It doubles as the in-memory record of the same thing before commit
// (spec §4.5's "header block, containing block #s for ...").
type logheader_t struct {
	n     int
	block [limits.LOGSIZE]int
}

// Log_t is the write-ahead redo log: begin_op/end_op group the FS calls of
// a batch of syscalls into one transaction, which only commits once no
// syscall is mid-flight, so a crash mid-transaction never leaves a
// half-applied set of writes on disk (spec §4.5).
type Log_t struct {
	mu    spinlock.Spinlock_t
	bc    *Bcache_t
	dev   int
	start int
	size  int

	outstanding int  // FS syscalls currently inside begin_op/end_op
	committing  bool // commit() in progress; begin_op callers must wait
	lh          logheader_t

	chanTok byte // sleep/wakeup channel token for this log
}

/// MkLog constructs a Log_t for dev using sb's log region, recovering any
/// committed-but-not-installed transaction left over from a prior crash.
func MkLog(h *spinlock.HartState, bc *Bcache_t, dev int, sb *Superblock_t) *Log_t {
	if limits.LOGSIZE*4+4 >= BSIZE {
		panic("MkLog: logheader too big for one block")
	}
	lg := &Log_t{
		bc:    bc,
		dev:   dev,
		start: sb.Logstart(),
		size:  sb.Nlog(),
	}
	lg.recover(h)
	return lg
}

func (lg *Log_t) readHead(h *spinlock.HartState) {
	b, err := lg.bc.Bread(h, lg.dev, lg.start)
	if err != 0 {
		panic("log: readHead: disk error")
	}
	lg.lh.n = fieldr(&b.Data, 0)
	for i := 0; i < lg.lh.n; i++ {
		lg.lh.block[i] = fieldr(&b.Data, 1+i)
	}
	lg.bc.Brelse(h, b)
}

func (lg *Log_t) writeHead(h *spinlock.HartState) {
	b, err := lg.bc.Bread(h, lg.dev, lg.start)
	if err != 0 {
		panic("log: writeHead: disk error")
	}
	fieldw(&b.Data, 0, lg.lh.n)
	for i := 0; i < lg.lh.n; i++ {
		fieldw(&b.Data, 1+i, lg.lh.block[i])
	}
	lg.bc.Bwrite(h, b)
	lg.bc.Brelse(h, b)
}

// installTrans copies each logged block from the log region to its home
// location. recovering distinguishes startup recovery (no buffers are
// pinned yet) from a normal commit (bunpin the home block afterward).
func (lg *Log_t) installTrans(h *spinlock.HartState, recovering bool) {
	for tail := 0; tail < lg.lh.n; tail++ {
		lbuf, err := lg.bc.Bread(h, lg.dev, lg.start+tail+1)
		if err != 0 {
			panic("log: installTrans: disk error")
		}
		dbuf, err := lg.bc.Bread(h, lg.dev, lg.lh.block[tail])
		if err != 0 {
			panic("log: installTrans: disk error")
		}
		dbuf.Data = lbuf.Data
		lg.bc.Bwrite(h, dbuf)
		if !recovering {
			lg.bc.Bunpin(h, dbuf)
		}
		lg.bc.Brelse(h, lbuf)
		lg.bc.Brelse(h, dbuf)
	}
}

func (lg *Log_t) recover(h *spinlock.HartState) {
	lg.readHead(h)
	lg.installTrans(h, true)
	lg.lh.n = 0
	lg.writeHead(h)
}

/// Begin_op marks the start of one FS syscall's participation in the
/// current transaction, blocking while a commit is underway or while this
/// op's worst-case footprint would overflow the log (spec §4.5).
func (lg *Log_t) Begin_op(h *spinlock.HartState) {
	lg.mu.Lock(h)
	for {
		if lg.committing {
			spinlock.Sleep(&lg.chanTok, &lg.mu, h)
			continue
		}
		if lg.lh.n+(lg.outstanding+1)*limits.MAXOPBLOCKS > limits.LOGSIZE {
			spinlock.Sleep(&lg.chanTok, &lg.mu, h)
			continue
		}
		lg.outstanding++
		lg.mu.Unlock(h)
		return
	}
}

/// End_op marks the end of one FS syscall's participation, committing the
/// transaction if this was the last outstanding one.
func (lg *Log_t) End_op(h *spinlock.HartState) {
	lg.mu.Lock(h)
	lg.outstanding--
	doCommit := false
	if lg.committing {
		panic("log: End_op: already committing")
	}
	if lg.outstanding == 0 {
		doCommit = true
		lg.committing = true
	} else {
		spinlock.Wakeup(&lg.chanTok)
	}
	lg.mu.Unlock(h)

	if doCommit {
		lg.commit(h)
		lg.mu.Lock(h)
		lg.committing = false
		spinlock.Wakeup(&lg.chanTok)
		lg.mu.Unlock(h)
	}
}

func (lg *Log_t) writeLog(h *spinlock.HartState) {
	for tail := 0; tail < lg.lh.n; tail++ {
		to, err := lg.bc.Bread(h, lg.dev, lg.start+tail+1)
		if err != 0 {
			panic("log: writeLog: disk error")
		}
		from, err := lg.bc.Bread(h, lg.dev, lg.lh.block[tail])
		if err != 0 {
			panic("log: writeLog: disk error")
		}
		to.Data = from.Data
		lg.bc.Bwrite(h, to)
		lg.bc.Brelse(h, from)
		lg.bc.Brelse(h, to)
	}
}

func (lg *Log_t) commit(h *spinlock.HartState) {
	if lg.lh.n == 0 {
		return
	}
	stats.Global.LogCommits.Inc()
	lg.writeLog(h)
	lg.writeHead(h)
	lg.installTrans(h, false)
	lg.lh.n = 0
	lg.writeHead(h)
}

/// Log_write records that b has been modified within the current
/// transaction, pinning it in the cache the first time it appears so the
/// eventual commit can find it (log absorption: writing the same block
/// twice in one transaction costs one log slot, not two).
func (lg *Log_t) Log_write(h *spinlock.HartState, b *Buf_t) {
	lg.mu.Lock(h)
	defer lg.mu.Unlock(h)

	if lg.lh.n >= limits.LOGSIZE || lg.lh.n >= lg.size-1 {
		panic("log: Log_write: transaction too big")
	}
	if lg.outstanding < 1 {
		panic("log: Log_write: outside of begin_op/end_op")
	}
	i := 0
	for ; i < lg.lh.n; i++ {
		if lg.lh.block[i] == b.Blockno {
			break
		}
	}
	lg.lh.block[i] = b.Blockno
	if i == lg.lh.n {
		lg.bc.Bpin(h, b)
		lg.lh.n++
		stats.Global.LogWrites.Inc()
	} else {
		stats.Global.LogAbsorbed.Inc()
	}
}
