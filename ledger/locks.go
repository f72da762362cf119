package ledger

import "sync"

type accountLock struct {
	sync.Mutex
	refs int
}

// accountLocks serializes operations per account; entries are dropped once
// no goroutine holds or waits on them
type accountLocks struct {
	mutex sync.Mutex
	locks map[string]*accountLock
}

func newAccountLocks() *accountLocks {
	return &accountLocks{
		locks: map[string]*accountLock{},
	}
}

// acquire blocks until the account lock is held and returns its release func
func (l *accountLocks) acquire(account string) func() {
	l.mutex.Lock()
	lock, ok := l.locks[account]
	if !ok {
		lock = &accountLock{}
		l.locks[account] = lock
	}
	lock.refs++
	l.mutex.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		l.mutex.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, account)
		}
		l.mutex.Unlock()
	}
}

func (l *accountLocks) size() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.locks)
}
