package services

import "sync"

func createCodeChannel(doneCh chan struct{}, codes []string) chan string {
	inputCh := make(chan string)
	go func() {
		defer close(inputCh)
		for _, code := range codes {
			select {
			case <-doneCh:
				return
			case inputCh <- code:
			}
		}
	}()
	return inputCh
}

func collectDeletionResults(channels ...chan string) chan string {
	finalCh := make(chan string)
	var wg sync.WaitGroup

	for _, ch := range channels {
		wg.Add(1)
		go func(ch chan string) {
			defer wg.Done()
			for v := range ch {
				finalCh <- v
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(finalCh)
	}()

	return finalCh
}
