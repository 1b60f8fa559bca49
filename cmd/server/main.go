package main

import "medrisk/internal/app"

// @title           MedRisk API
// @version         1.0
// @description     Оценка рисков здоровья: аккаунты, сессии, верификация, OAuth.
// @BasePath        /
func main() {
	app.Run()
}
