// Package pubsub 在同一进程内广播状态变化 (书签列表、最近浏览列表)
package pubsub

import "sync"

// Broker 把最新的值推送给所有订阅者
// 每个订阅者只缓冲一个值，慢消费者只会看到最新的状态
type Broker[T any] struct {
	mu   sync.RWMutex
	subs map[chan T]struct{}
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[chan T]struct{})}
}

// Subscribe 返回订阅通道和取消函数，取消后通道会被关闭
func (b *Broker[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Publish 不阻塞: 订阅者缓冲已满时丢弃旧值换成新值
func (b *Broker[T]) Publish(v T) {
	if b == nil {
		return
	}
	// 持有读锁期间通道不会被关闭
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribers 当前订阅者数量
func (b *Broker[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
