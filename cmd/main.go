package main

import (
  "fmt"
  "os"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/app"
  "github.com/jibbs1703/Retail-Chat-Agent/internal/utils"
)

func main() {
  application, err := app.New()
  if err != nil {
    fmt.Printf("init app: %v\n", err)
    os.Exit(1)
  }
  defer application.Close()

  port := utils.GetEnv("PORT", "8080", application.Log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := application.Run(":" + port); err != nil {
    application.Log.Warn("Server failed", "error", err)
  }
}
